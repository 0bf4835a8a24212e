package domain

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	resultTypesMu sync.RWMutex
	resultTypes   = map[ResultType]func() Result{}
)

// RegisterResultType makes an app-defined result decodable by UnmarshalResult.
// The factory must return a pointer whose type implements json.Unmarshaler
// or decodes with the standard struct rules.
func RegisterResultType(t ResultType, factory func() Result) {
	resultTypesMu.Lock()
	defer resultTypesMu.Unlock()
	resultTypes[t] = factory
}

// UnmarshalResult decodes a result using its "type" discriminator.
func UnmarshalResult(data []byte) (Result, error) {
	var head struct {
		Type ResultType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	var r Result
	switch head.Type {
	case ResultStep:
		r = &StepResult{}
	case ResultAnswer:
		r = &AnswerResult{}
	case ResultCollection:
		r = &CollectionResult{}
	case ResultTask:
		r = &TaskResult{}
	case ResultAssessment:
		r = &AssessmentResult{}
	default:
		resultTypesMu.RLock()
		factory, ok := resultTypes[head.Type]
		resultTypesMu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("unknown result type %q", head.Type)
		}
		r = factory()
	}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", head.Type, err)
	}
	return r, nil
}

type stepWire struct {
	Type ResultType `json:"type"`
	BaseResult
}

func (r *StepResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(stepWire{Type: ResultStep, BaseResult: r.BaseResult})
}

func (r *StepResult) UnmarshalJSON(data []byte) error {
	var w stepWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.BaseResult = w.BaseResult
	return nil
}

type answerWire struct {
	Type ResultType `json:"type"`
	BaseResult
	AnswerType AnswerType `json:"answerType"`
	Value      *Value     `json:"value,omitempty"`
}

func (r *AnswerResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(answerWire{Type: ResultAnswer, BaseResult: r.BaseResult, AnswerType: r.AnswerType, Value: r.Value})
}

// UnmarshalJSON keeps an explicit null answer apart from a missing one and
// restores number answers that were written without a fraction.
func (r *AnswerResult) UnmarshalJSON(data []byte) error {
	var w struct {
		BaseResult
		AnswerType AnswerType      `json:"answerType"`
		Value      json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.BaseResult = w.BaseResult
	r.AnswerType = w.AnswerType
	r.Value = nil
	if len(w.Value) > 0 {
		var v Value
		if err := json.Unmarshal(w.Value, &v); err != nil {
			return fmt.Errorf("answer %q: %w", w.Identifier, err)
		}
		v = asAnswerType(v, w.AnswerType)
		r.Value = &v
	}
	return nil
}

// asAnswerType turns integers back into numbers where the answer type says so.
func asAnswerType(v Value, t AnswerType) Value {
	switch {
	case t.Kind == AnswerNumber && v.Kind() == KindInteger:
		f, _ := v.Float()
		return Number(f)
	case t.Kind == AnswerArray && t.BaseType == AnswerNumber && v.Kind() == KindArray:
		items := v.Items()
		for i, item := range items {
			items[i] = asAnswerType(item, AnswerType{Kind: AnswerNumber})
		}
		return Array(items...)
	}
	return v
}

type collectionWire struct {
	Type          ResultType        `json:"type"`
	Identifier    string            `json:"identifier"`
	StartDate     time.Time         `json:"startDate,omitzero"`
	EndDate       time.Time         `json:"endDate,omitzero"`
	TaskRunUUID   *uuid.UUID        `json:"taskRunUUID,omitempty"`
	VersionString string            `json:"versionString,omitempty"`
	PathHistory   []json.RawMessage `json:"pathHistoryResults"`
	Async         []json.RawMessage `json:"asyncActionResults"`
}

func (c *CollectionResult) wire(t ResultType) (collectionWire, error) {
	w := collectionWire{
		Type:        t,
		Identifier:  c.Identifier,
		StartDate:   c.StartDate,
		EndDate:     c.EndDate,
		PathHistory: make([]json.RawMessage, 0, len(c.history)),
		Async:       []json.RawMessage{},
	}
	for _, r := range c.history {
		raw, err := json.Marshal(r)
		if err != nil {
			return w, fmt.Errorf("result %q: %w", r.ResultIdentifier(), err)
		}
		w.PathHistory = append(w.PathHistory, raw)
	}
	for _, r := range c.async.list() {
		raw, err := json.Marshal(r)
		if err != nil {
			return w, fmt.Errorf("async result %q: %w", r.ResultIdentifier(), err)
		}
		w.Async = append(w.Async, raw)
	}
	return w, nil
}

func (c *CollectionResult) fromWire(w collectionWire) error {
	c.BaseResult = BaseResult{Identifier: w.Identifier, StartDate: w.StartDate, EndDate: w.EndDate}
	c.history = nil
	for i, raw := range w.PathHistory {
		r, err := UnmarshalResult(raw)
		if err != nil {
			return fmt.Errorf("pathHistoryResults[%d]: %w", i, err)
		}
		c.history = append(c.history, r)
	}
	for i, raw := range w.Async {
		r, err := UnmarshalResult(raw)
		if err != nil {
			return fmt.Errorf("asyncActionResults[%d]: %w", i, err)
		}
		c.async.set(r)
	}
	return nil
}

func (c *CollectionResult) MarshalJSON() ([]byte, error) {
	w, err := c.wire(ResultCollection)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

func (c *CollectionResult) UnmarshalJSON(data []byte) error {
	var w collectionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	return c.fromWire(w)
}

func (t *TaskResult) MarshalJSON() ([]byte, error) {
	w, err := t.wire(ResultTask)
	if err != nil {
		return nil, err
	}
	id := t.TaskRunUUID
	w.TaskRunUUID = &id
	return json.Marshal(w)
}

func (t *TaskResult) UnmarshalJSON(data []byte) error {
	var w collectionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.TaskRunUUID != nil {
		t.TaskRunUUID = *w.TaskRunUUID
	}
	return t.fromWire(w)
}

func (a *AssessmentResult) MarshalJSON() ([]byte, error) {
	w, err := a.wire(ResultAssessment)
	if err != nil {
		return nil, err
	}
	id := a.TaskRunUUID
	w.TaskRunUUID = &id
	w.VersionString = a.VersionString
	return json.Marshal(w)
}

func (a *AssessmentResult) UnmarshalJSON(data []byte) error {
	var w collectionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.TaskRunUUID != nil {
		a.TaskRunUUID = *w.TaskRunUUID
	}
	a.VersionString = w.VersionString
	return a.fromWire(w)
}
