package schema_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/aretw0/quire/pkg/domain"
	"github.com/aretw0/quire/pkg/schema"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState(t *testing.T) []byte {
	t.Helper()
	res := domain.NewAssessmentResult("survey", "2.0", uuid.New())
	res.SetStart(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	sec := domain.NewCollectionResult("about")
	a := domain.NewAnswerResult("age", domain.AnswerType{Kind: domain.AnswerInteger})
	v := domain.Int(30)
	a.SetAnswer(&v)
	sec.AppendOrReplace(a)
	res.AppendOrReplace(sec)
	res.SetAsyncResult(domain.NewStepResult("motion"))

	raw, err := json.Marshal(domain.NewState("s-1", "survey", res))
	require.NoError(t, err)
	return raw
}

func TestDecodeSnapshot(t *testing.T) {
	st, err := schema.DecodeSnapshot(sampleState(t))
	require.NoError(t, err)

	assert.Equal(t, "s-1", st.SessionID)
	assert.Equal(t, "2.0", st.Result.VersionString)
	r, _ := st.Result.Find("about")
	require.NotNil(t, r)
	assert.Equal(t, domain.ResultCollection, r.ResultType())
}

func TestValidateSnapshot_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(doc map[string]any)
	}{
		{"missing result", func(doc map[string]any) { delete(doc, "result") }},
		{"unknown status", func(doc map[string]any) { doc["status"] = "sleeping" }},
		{"root is not an assessment", func(doc map[string]any) {
			doc["result"].(map[string]any)["type"] = "collection"
		}},
		{"nested entry without identifier", func(doc map[string]any) {
			hist := doc["result"].(map[string]any)["pathHistoryResults"].([]any)
			delete(hist[0].(map[string]any), "identifier")
		}},
		{"bad run id", func(doc map[string]any) {
			doc["result"].(map[string]any)["taskRunUUID"] = "not-a-uuid"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var doc map[string]any
			require.NoError(t, json.Unmarshal(sampleState(t), &doc))
			tt.mutate(doc)
			raw, err := json.Marshal(doc)
			require.NoError(t, err)

			_, err = schema.DecodeSnapshot(raw)
			assert.ErrorIs(t, err, domain.ErrMalformedSnapshot)
			var serr *domain.SnapshotError
			assert.ErrorAs(t, err, &serr)
		})
	}
}

func TestValidateSnapshot_InvalidJSON(t *testing.T) {
	assert.ErrorIs(t, schema.ValidateSnapshot([]byte("{not json")), domain.ErrMalformedSnapshot)
}
