package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/quire/pkg/domain"
)

// JSONHandler implements the IOHandler interface for structured JSON-Lines communication.
// Every step is written as one StepView object; every input line is a Command
// object such as {"answer": 42} or {"action": "goBackward"}.
type JSONHandler struct {
	Writer  io.Writer
	Encoder *json.Encoder

	pump *linePump
}

// SystemMessage is the envelope for out-of-flow output.
type SystemMessage struct {
	System  string `json:"system,omitempty"`
	Confirm string `json:"confirm,omitempty"`
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Writer:  w,
		Encoder: json.NewEncoder(w),
		pump:    newLinePump(r),
	}
}

func (h *JSONHandler) Output(ctx context.Context, view domain.StepView) (bool, error) {
	if err := h.Encoder.Encode(view); err != nil {
		return false, err
	}
	return !view.Terminal, nil
}

func (h *JSONHandler) Input(ctx context.Context) (Command, error) {
	for {
		text, err := h.pump.next(ctx)
		if err != nil {
			return Command{}, err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text))
		dec.DisallowUnknownFields()
		var cmd Command
		if err := dec.Decode(&cmd); err != nil {
			return Command{}, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
		}
		if cmd.Answer != nil && cmd.Action == "" {
			cmd.Action = domain.ActionGoForward
		}
		return cmd, nil
	}
}

// Confirm emits {"confirm": prompt} and expects {"confirm": true|false}.
func (h *JSONHandler) Confirm(ctx context.Context, prompt string) (bool, error) {
	if err := h.Encoder.Encode(SystemMessage{Confirm: prompt}); err != nil {
		return false, err
	}
	text, err := h.pump.next(ctx)
	if err != nil {
		return false, err
	}
	var reply struct {
		Confirm bool `json:"confirm"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &reply); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	return reply.Confirm, nil
}

func (h *JSONHandler) SystemOutput(ctx context.Context, msg string) error {
	return h.Encoder.Encode(SystemMessage{System: msg})
}
