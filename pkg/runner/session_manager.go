package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/quire/pkg/domain"
	"github.com/aretw0/quire/pkg/session"
	"github.com/google/uuid"
)

// SessionSource is the slice of *quire.Engine the SessionManager needs.
type SessionSource interface {
	Snapshot(ctx context.Context, sessionID string) (*domain.State, error)
	LoadOrStart(ctx context.Context, assessmentID, sessionID string) (*session.Session, error)
	Resume(ctx context.Context, sessionID string) (*domain.StepView, error)
	Open(ctx context.Context, sessionID string) (*session.Session, error)
}

// SessionManager handles the lifecycle of a durable session for an
// interactive run: it starts new sessions, reattaches to unfinished ones and
// resumes paused ones.
type SessionManager struct {
	Source SessionSource
}

// NewSessionManager creates a new SessionManager.
func NewSessionManager(source SessionSource) *SessionManager {
	return &SessionManager{Source: source}
}

// LoadOrStart attaches to sessionID, starting a new run of assessmentID when
// it does not exist. An empty sessionID gets a fresh UUID. Paused runs are
// resumed. Returns the session and whether it existed before.
func (sm *SessionManager) LoadOrStart(ctx context.Context, assessmentID, sessionID string) (*session.Session, bool, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	st, err := sm.Source.Snapshot(ctx, sessionID)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		s, err := sm.Source.LoadOrStart(ctx, assessmentID, sessionID)
		return s, false, err
	case err != nil:
		return nil, false, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	if assessmentID != "" && st.AssessmentID != assessmentID {
		return nil, false, fmt.Errorf("session %s belongs to assessment %q, not %q", sessionID, st.AssessmentID, assessmentID)
	}
	if st.Status == domain.StatusPaused {
		if _, err := sm.Source.Resume(ctx, sessionID); err != nil {
			return nil, false, err
		}
	}
	s, err := sm.Source.Open(ctx, sessionID)
	return s, true, err
}
