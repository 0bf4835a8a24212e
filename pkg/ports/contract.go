package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/quire/pkg/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStateStoreContract runs a suite of tests to verify that a StateStore implementation
// adheres to the defined interface contract.
func RunStateStoreContract(t *testing.T, store StateStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	newState := func(id string) *domain.State {
		res := domain.NewAssessmentResult("survey", "1.0", uuid.New())
		res.SetStart(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
		answer := domain.NewAnswerResult("age", domain.AnswerType{Kind: domain.AnswerInteger})
		v := domain.Int(42)
		answer.SetAnswer(&v)
		answer.SetStart(res.StartDate)
		res.AppendOrReplace(answer)
		res.SetAsyncResult(domain.NewStepResult("heartbeat"))
		st := domain.NewState(id, "survey", res)
		st.CurrentPath = []string{"age"}
		return st
	}

	t.Run("Save and Load", func(t *testing.T) {
		state := newState(sessionID)

		err := store.Save(ctx, sessionID, state)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, state.AssessmentID, loaded.AssessmentID)
		assert.Equal(t, state.Status, loaded.Status)
		assert.Equal(t, state.CurrentPath, loaded.CurrentPath)
		require.NotNil(t, loaded.Result)
		assert.Equal(t, state.Result.TaskRunUUID, loaded.Result.TaskRunUUID)
		assert.True(t, state.Result.StartDate.Equal(loaded.Result.StartDate))

		r, idx := loaded.Result.Find("age")
		require.Equal(t, 0, idx)
		answer, ok := r.(*domain.AnswerResult)
		require.True(t, ok, "answer results keep their concrete type")
		assert.True(t, answer.Answer().Equal(domain.Int(42)), "integers survive persistence")

		_, ok = loaded.Result.AsyncResult("heartbeat")
		assert.True(t, ok)
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		state := newState(sessionID)
		state.Status = domain.StatusPaused
		require.NoError(t, store.Save(ctx, sessionID, state))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPaused, loaded.Status)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, newState(sessionID))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, newState(id1))
		_ = store.Save(ctx, id2, newState(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
