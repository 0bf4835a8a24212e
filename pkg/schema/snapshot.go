package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aretw0/quire/pkg/domain"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed snapshot.schema.json
var snapshotSchemaJSON []byte

const snapshotSchemaURL = "https://quire.dev/schema/snapshot.json"

var snapshotSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(snapshotSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parse snapshot schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(snapshotSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	return c.Compile(snapshotSchemaURL)
})

// SnapshotSchema returns the raw JSON Schema persisted snapshots conform to.
func SnapshotSchema() []byte {
	return bytes.Clone(snapshotSchemaJSON)
}

// ValidateSnapshot checks a persisted State document against the snapshot schema.
func ValidateSnapshot(data []byte) error {
	compiled, err := snapshotSchema()
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return &domain.SnapshotError{Reason: "invalid JSON", Err: err}
	}
	if err := compiled.Validate(inst); err != nil {
		return &domain.SnapshotError{Reason: "schema validation failed", Err: err}
	}
	return nil
}

// DecodeSnapshot validates and decodes a persisted State document.
// Failures are reported as *domain.SnapshotError.
func DecodeSnapshot(data []byte) (*domain.State, error) {
	if err := ValidateSnapshot(data); err != nil {
		return nil, err
	}
	var st domain.State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, &domain.SnapshotError{Reason: "decode", Err: err}
	}
	return &st, nil
}
