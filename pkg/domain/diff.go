package domain

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"
)

// StateDiff represents the changes between two snapshots.
// It is designed to be serialized to JSON for partial updates on the client.
type StateDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	Status      *ExecutionStatus `json:"status,omitempty"`
	CurrentPath []string         `json:"current_path,omitempty"`

	// History lists result paths ("section/question") that changed.
	History *HistoryDelta `json:"history,omitempty"`

	Terminated *bool `json:"terminated,omitempty"`
}

// HistoryDelta groups changed result paths by kind of change.
type HistoryDelta struct {
	Appended []string `json:"appended,omitempty"`
	Replaced []string `json:"replaced,omitempty"`
	Removed  []string `json:"removed,omitempty"`
}

func (h *HistoryDelta) empty() bool {
	return len(h.Appended) == 0 && len(h.Replaced) == 0 && len(h.Removed) == 0
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState (initial load).
func Diff(oldState, newState *State) *StateDiff {
	if newState == nil {
		return nil
	}

	diff := &StateDiff{
		SessionID: newState.SessionID,
	}

	if oldState == nil || oldState.Status != newState.Status {
		diff.Status = &newState.Status
	}
	if oldState == nil || !slices.Equal(oldState.CurrentPath, newState.CurrentPath) {
		diff.CurrentPath = slices.Clone(newState.CurrentPath)
	}
	newTerm := newState.Terminated()
	if (oldState == nil && newTerm) || (oldState != nil && oldState.Terminated() != newTerm) {
		diff.Terminated = &newTerm
	}

	diff.History = diffHistory(oldState, newState)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffHistory(old, new *State) *HistoryDelta {
	var before []flatEntry
	if old != nil && old.Result != nil {
		before = flatten(nil, &old.Result.CollectionResult)
	}
	var after []flatEntry
	if new.Result != nil {
		after = flatten(nil, &new.Result.CollectionResult)
	}

	prev := make(map[string][]byte, len(before))
	for _, e := range before {
		prev[e.path] = e.raw
	}
	delta := &HistoryDelta{}
	seen := make(map[string]bool, len(after))
	for _, e := range after {
		seen[e.path] = true
		raw, ok := prev[e.path]
		switch {
		case !ok:
			delta.Appended = append(delta.Appended, e.path)
		case !bytes.Equal(raw, e.raw):
			delta.Replaced = append(delta.Replaced, e.path)
		}
	}
	for _, e := range before {
		if !seen[e.path] {
			delta.Removed = append(delta.Removed, e.path)
		}
	}
	if delta.empty() {
		return nil
	}
	return delta
}

type flatEntry struct {
	path string
	raw  []byte
}

// flatten lists leaf results depth-first. Branch results contribute their children only.
func flatten(prefix []string, c *CollectionResult) []flatEntry {
	var out []flatEntry
	for _, r := range c.history {
		path := append(slices.Clone(prefix), r.ResultIdentifier())
		if b, ok := r.(BranchNodeResult); ok {
			out = append(out, flatten(path, b.Collection())...)
			continue
		}
		raw, _ := json.Marshal(r)
		out = append(out, flatEntry{path: strings.Join(path, "/"), raw: raw})
	}
	return out
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return d.Status == nil &&
		d.CurrentPath == nil &&
		d.Terminated == nil &&
		d.History == nil
}
