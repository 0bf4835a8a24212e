package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/quire/pkg/domain"
)

// ContentRenderer is a function that transforms the content before outputting it.
// This allows for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)

// TextHandler implements the standard text-based interface.
type TextHandler struct {
	Writer   io.Writer
	Renderer ContentRenderer
	// TitleStyle decorates step titles (e.g. bold, colored).
	TitleStyle func(string) string
	// Policy bounds each input line.
	Policy AnswerPolicy

	pump *linePump
	last domain.StepView
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer configures the content renderer used for step details.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// WithTextHandlerTitleStyle configures how titles are decorated.
func WithTextHandlerTitleStyle(style func(string) string) TextHandlerOption {
	return func(h *TextHandler) {
		h.TitleStyle = style
	}
}

// WithTextHandlerPolicy sets the limits applied to input lines.
func WithTextHandlerPolicy(p AnswerPolicy) TextHandlerOption {
	return func(h *TextHandler) {
		h.Policy = p
	}
}

// NewTextHandler creates a handler for standard text IO.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		Writer: w,
		pump:   newLinePump(r),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *TextHandler) Output(ctx context.Context, view domain.StepView) (bool, error) {
	h.last = view
	var sb strings.Builder

	if view.Terminal {
		fmt.Fprintf(&sb, "\n[%s] %s\n", view.Status, view.AssessmentID)
		_, err := io.WriteString(h.Writer, sb.String())
		return false, err
	}

	title := view.Title
	if title == "" {
		title = view.Identifier
	}
	if h.TitleStyle != nil {
		title = h.TitleStyle(title)
	}
	sb.WriteString("\n")
	if view.Total > 0 {
		fmt.Fprintf(&sb, "[%d/%d] ", view.Index+1, view.Total)
	}
	sb.WriteString(title + "\n")
	if view.Subtitle != "" {
		sb.WriteString(view.Subtitle + "\n")
	}
	if view.Detail != "" {
		sb.WriteString(h.render(view.Detail) + "\n")
	}
	if view.Input != nil {
		writeInput(&sb, view.Input)
	}
	if view.Answer != nil {
		fmt.Fprintf(&sb, "Current answer: %s\n", view.Answer)
	}
	if cmds := commandsLine(view); cmds != "" {
		sb.WriteString(cmds + "\n")
	}

	_, err := io.WriteString(h.Writer, sb.String())
	return true, err
}

func (h *TextHandler) render(md string) string {
	if h.Renderer == nil {
		return md
	}
	rendered, err := h.Renderer(md)
	if err != nil {
		return md
	}
	return strings.TrimSpace(rendered)
}

func writeInput(sb *strings.Builder, in *domain.InputField) {
	switch in.Style {
	case domain.InputChoice:
		for i, c := range in.Choices {
			fmt.Fprintf(sb, "  %d) %s\n", i+1, c.Text)
		}
		if in.AllowsOther() {
			fmt.Fprintf(sb, "  or type: %s\n", in.OtherInputText)
		}
		if !in.SingleChoice {
			sb.WriteString("  (several allowed, comma separated)\n")
		}
	case domain.InputLikert:
		fmt.Fprintf(sb, "  %d-%d", in.Min, in.Max)
		if in.MinLabel != "" || in.MaxLabel != "" {
			fmt.Fprintf(sb, " (%s .. %s)", in.MinLabel, in.MaxLabel)
		}
		sb.WriteString("\n")
	}
}

func commandsLine(view domain.StepView) string {
	var parts []string
	for _, b := range view.Buttons {
		if b.Action == domain.ActionGoForward {
			continue
		}
		name := string(b.Action)
		for alias, a := range commandAliases {
			if a == b.Action {
				name = alias
				break
			}
		}
		parts = append(parts, fmt.Sprintf(":%s (%s)", name, b.Title))
	}
	if len(parts) == 0 {
		return ""
	}
	return "Commands: " + strings.Join(parts, "  ")
}

func (h *TextHandler) Input(ctx context.Context) (Command, error) {
	for {
		line, err := h.readLine(ctx)
		if err != nil {
			return Command{}, err
		}
		cmd, err := ParseCommand(h.last, line)
		if err != nil {
			if errors.Is(err, ErrInvalidCommand) || errors.Is(err, domain.ErrInvalidAnswer) {
				// User Feedback: Prompt retry
				fmt.Fprintf(h.Writer, "Error: %v. Please try again.\n", err)
				continue
			}
			return Command{}, err
		}
		return cmd, nil
	}
}

func (h *TextHandler) readLine(ctx context.Context) (string, error) {
	for {
		// Only show prompt if context is not yet done
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		fmt.Fprint(h.Writer, "> ")

		text, err := h.pump.next(ctx)
		if err != nil {
			return "", err
		}
		clean, err := h.Policy.CleanLine(strings.TrimSpace(text))
		if err != nil {
			fmt.Fprintf(h.Writer, "Error: %v. Please try again.\n", err)
			continue
		}
		return clean, nil
	}
}

func (h *TextHandler) Confirm(ctx context.Context, prompt string) (bool, error) {
	fmt.Fprintf(h.Writer, "%s [y/N]\n", prompt)
	line, err := h.readLine(ctx)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(line) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func (h *TextHandler) SystemOutput(ctx context.Context, msg string) error {
	_, err := fmt.Fprintf(h.Writer, "\n[System] %s\n", msg)
	return err
}
