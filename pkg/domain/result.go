package domain

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ResultType discriminates serialized results.
type ResultType string

const (
	ResultStep       ResultType = "base"
	ResultAnswer     ResultType = "answer"
	ResultCollection ResultType = "collection"
	ResultTask       ResultType = "task"
	ResultAssessment ResultType = "assessment"
)

// Result is the record produced by visiting a node or by a background action.
// The identifier correlates it with the node that produced it.
type Result interface {
	ResultIdentifier() string
	ResultType() ResultType
	Start() time.Time
	End() time.Time
	SetStart(time.Time)
	// SetEnd stamps completion. The zero time clears it.
	SetEnd(time.Time)
	DeepCopy() Result
}

// BranchNodeResult is a result that owns a scope of child results.
type BranchNodeResult interface {
	Result
	Collection() *CollectionResult
}

// BaseResult carries the fields shared by every result. Embed it to build app-defined results.
type BaseResult struct {
	Identifier string    `json:"identifier"`
	StartDate  time.Time `json:"startDate,omitzero"`
	EndDate    time.Time `json:"endDate,omitzero"`
}

func (b *BaseResult) ResultIdentifier() string { return b.Identifier }
func (b *BaseResult) Start() time.Time { return b.StartDate }
func (b *BaseResult) End() time.Time { return b.EndDate }
func (b *BaseResult) SetStart(t time.Time) { b.StartDate = t }
func (b *BaseResult) SetEnd(t time.Time) { b.EndDate = t }

// Completed reports whether an end stamp is set.
func (b *BaseResult) Completed() bool { return !b.EndDate.IsZero() }

// StepResult is recorded for steps that do not collect input.
type StepResult struct {
	BaseResult
}

func NewStepResult(identifier string) *StepResult {
	return &StepResult{BaseResult{Identifier: identifier}}
}

func (r *StepResult) ResultType() ResultType { return ResultStep }

func (r *StepResult) DeepCopy() Result {
	c := *r
	return &c
}

// AnswerResult holds one recorded answer. Value is nil until the respondent answers.
type AnswerResult struct {
	BaseResult
	AnswerType AnswerType `json:"answerType"`
	Value      *Value     `json:"value,omitempty"`
}

func NewAnswerResult(identifier string, answerType AnswerType) *AnswerResult {
	return &AnswerResult{BaseResult: BaseResult{Identifier: identifier}, AnswerType: answerType}
}

func (r *AnswerResult) ResultType() ResultType { return ResultAnswer }

func (r *AnswerResult) DeepCopy() Result {
	c := *r
	if r.Value != nil {
		v := r.Value.Clone()
		c.Value = &v
	}
	return &c
}

// Answer returns the recorded value, or nil.
func (r *AnswerResult) Answer() *Value {
	return r.Value
}

// SetAnswer records a value. Passing nil clears the answer.
func (r *AnswerResult) SetAnswer(v *Value) {
	if v == nil {
		r.Value = nil
		return
	}
	c := v.Clone()
	r.Value = &c
}

// CollectionResult aggregates the results of a branch scope.
type CollectionResult struct {
	BaseResult
	history []Result
	async   asyncSet
}

func NewCollectionResult(identifier string) *CollectionResult {
	return &CollectionResult{BaseResult: BaseResult{Identifier: identifier}}
}

func (c *CollectionResult) ResultType() ResultType { return ResultCollection }
func (c *CollectionResult) Collection() *CollectionResult { return c }

func (c *CollectionResult) DeepCopy() Result {
	return c.copyCollection()
}

func (c *CollectionResult) copyCollection() *CollectionResult {
	out := &CollectionResult{BaseResult: c.BaseResult}
	if c.history != nil {
		out.history = make([]Result, len(c.history))
		for i, r := range c.history {
			out.history[i] = r.DeepCopy()
		}
	}
	for _, r := range c.async.list() {
		out.async.set(r.DeepCopy())
	}
	return out
}

// PathHistory returns the visited results in visitation order.
func (c *CollectionResult) PathHistory() []Result {
	return append([]Result(nil), c.history...)
}

func (c *CollectionResult) Len() int { return len(c.history) }

// At returns the entry at index i.
func (c *CollectionResult) At(i int) Result {
	if i < 0 || i >= len(c.history) {
		return nil
	}
	return c.history[i]
}

// Last returns the most recent entry, or nil.
func (c *CollectionResult) Last() Result {
	return c.At(len(c.history) - 1)
}

// Find returns the entry for an identifier and its index, or nil and -1.
func (c *CollectionResult) Find(identifier string) (Result, int) {
	for i, r := range c.history {
		if r.ResultIdentifier() == identifier {
			return r, i
		}
	}
	return nil, -1
}

// AppendOrReplace records r. An existing entry with the same identifier is
// replaced at its index; otherwise r is appended. Returns the index used.
func (c *CollectionResult) AppendOrReplace(r Result) int {
	if _, i := c.Find(r.ResultIdentifier()); i >= 0 {
		c.history[i] = r
		return i
	}
	c.history = append(c.history, r)
	return len(c.history) - 1
}

// Truncate keeps the first n entries.
func (c *CollectionResult) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n >= len(c.history) {
		return
	}
	for i := n; i < len(c.history); i++ {
		c.history[i] = nil
	}
	c.history = c.history[:n]
}

// RemoveLast drops the most recent entry.
func (c *CollectionResult) RemoveLast() {
	c.Truncate(len(c.history) - 1)
}

// SetAsyncResult records a background action result. Safe for concurrent use;
// re-registering an identifier replaces the previous result.
func (c *CollectionResult) SetAsyncResult(r Result) {
	c.async.set(r)
}

// AsyncResult looks up a background action result.
func (c *CollectionResult) AsyncResult(identifier string) (Result, bool) {
	return c.async.get(identifier)
}

// RemoveAsyncResult deletes a background action result.
func (c *CollectionResult) RemoveAsyncResult(identifier string) {
	c.async.remove(identifier)
}

// AsyncResults returns the background action results sorted by identifier.
func (c *CollectionResult) AsyncResults() []Result {
	return c.async.list()
}

type asyncSet struct {
	mu sync.RWMutex
	m  map[string]Result
}

func (s *asyncSet) set(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = make(map[string]Result)
	}
	s.m[r.ResultIdentifier()] = r
}

func (s *asyncSet) get(id string) (Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.m[id]
	return r, ok
}

func (s *asyncSet) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, id)
}

func (s *asyncSet) list() []Result {
	s.mu.RLock()
	out := make([]Result, 0, len(s.m))
	for _, r := range s.m {
		out = append(out, r)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].ResultIdentifier() < out[j].ResultIdentifier()
	})
	return out
}

// TaskResult is a collection stamped with the run it belongs to.
type TaskResult struct {
	CollectionResult
	TaskRunUUID uuid.UUID
}

func NewTaskResult(identifier string, runID uuid.UUID) *TaskResult {
	return &TaskResult{CollectionResult: CollectionResult{BaseResult: BaseResult{Identifier: identifier}}, TaskRunUUID: runID}
}

func (t *TaskResult) ResultType() ResultType { return ResultTask }

func (t *TaskResult) DeepCopy() Result {
	return t.copyTask()
}

func (t *TaskResult) copyTask() *TaskResult {
	c := t.CollectionResult.copyCollection()
	out := &TaskResult{TaskRunUUID: t.TaskRunUUID}
	out.BaseResult = c.BaseResult
	out.history = c.history
	for _, r := range c.async.list() {
		out.async.set(r)
	}
	return out
}

// AssessmentResult is the root of a run's result tree.
type AssessmentResult struct {
	TaskResult
	VersionString string
}

// NewAssessmentResult creates a fresh root result for a run.
func NewAssessmentResult(identifier, version string, runID uuid.UUID) *AssessmentResult {
	a := &AssessmentResult{VersionString: version}
	a.Identifier = identifier
	a.TaskRunUUID = runID
	return a
}

func (a *AssessmentResult) ResultType() ResultType { return ResultAssessment }

func (a *AssessmentResult) DeepCopy() Result {
	return a.Copy()
}

// Copy returns a deep copy that shares no mutable state with a.
func (a *AssessmentResult) Copy() *AssessmentResult {
	if a == nil {
		return nil
	}
	t := a.copyTask()
	out := &AssessmentResult{VersionString: a.VersionString}
	out.TaskRunUUID = t.TaskRunUUID
	out.BaseResult = t.BaseResult
	out.history = t.history
	for _, r := range t.async.list() {
		out.async.set(r)
	}
	return out
}

// Terminated reports whether the run has been stamped with an end date.
func (a *AssessmentResult) Terminated() bool {
	return !a.EndDate.IsZero()
}
