package ports

import (
	"context"

	"github.com/aretw0/quire/pkg/domain"
)

// AsyncRecorder is a background collaborator (a passive sensor, a timer) that
// produces a result alongside the visible steps. Record blocks until the
// recording is done or ctx is cancelled.
type AsyncRecorder interface {
	Identifier() string
	Record(ctx context.Context) (domain.Result, error)
}

// RecorderFunc adapts a function to AsyncRecorder.
type RecorderFunc struct {
	ID string
	Fn func(ctx context.Context) (domain.Result, error)
}

func (r RecorderFunc) Identifier() string { return r.ID }

func (r RecorderFunc) Record(ctx context.Context) (domain.Result, error) { return r.Fn(ctx) }
