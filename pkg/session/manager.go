package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aretw0/quire/pkg/domain"
	"github.com/aretw0/quire/pkg/graph"
	"github.com/aretw0/quire/pkg/ports"
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates session access, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.StateStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	opts options
}

// NewManager creates a new Session Manager with the given persistence store.
// Options not specific to the Manager are passed on to every session it opens.
func NewManager(store ports.StateStore, opts ...Option) *Manager {
	return &Manager{
		store: store,
		locks: make(map[string]*lockEntry),
		opts:  newOptions(opts),
	}
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

func (m *Manager) sessionOptions(sessionID string, extra []Option) []Option {
	o := m.opts
	base := func(dst *options) {
		dst.logger = o.logger
		dst.hooks = o.hooks
		dst.now = o.now
		dst.evaluate = o.evaluate
		dst.actions = o.actions
		dst.store = m.store
		dst.sessionID = sessionID
	}
	return append([]Option{base}, extra...)
}

// Start begins a fresh run and persists it. An empty sessionID generates one.
// Starting over an existing session ID replaces it.
func (m *Manager) Start(ctx context.Context, g *graph.Graph, sessionID string, opts ...Option) (*Session, error) {
	if sessionID == "" {
		s, err := Start(ctx, g, m.sessionOptions("", opts)...)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	var s *Session
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		s, err = Start(ctx, g, m.sessionOptions(sessionID, opts)...)
		return err
	})
	return s, err
}

// LoadOrStart opens a persisted session, or starts a fresh run of g when none exists.
func (m *Manager) LoadOrStart(ctx context.Context, g *graph.Graph, sessionID string) (*Session, error) {
	var s *Session
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		st, err := m.store.Load(ctx, sessionID)
		if err == nil {
			s, err = Open(ctx, g, st, m.sessionOptions(sessionID, nil)...)
			return err
		}
		if !errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("failed to check session existence: %w", err)
		}
		s, err = Start(ctx, g, m.sessionOptions(sessionID, nil)...)
		return err
	})
	return s, err
}

// Resume loads a snapshot and restarts the run from it (see Resume).
func (m *Manager) Resume(ctx context.Context, sessionID string) (*Session, error) {
	var s *Session
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		st, g, err := m.load(ctx, sessionID)
		if err != nil {
			return err
		}
		s, err = Resume(ctx, g, st, m.sessionOptions(sessionID, nil)...)
		return err
	})
	return s, err
}

// Do opens a persisted session and runs fn while holding its lock, so no other
// caller (in this process, or in others when a DistributedLocker is set) can
// mutate the run meanwhile.
func (m *Manager) Do(ctx context.Context, sessionID string, fn func(context.Context, *Session) error) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		st, g, err := m.load(ctx, sessionID)
		if err != nil {
			return err
		}
		s, err := Open(ctx, g, st, m.sessionOptions(sessionID, nil)...)
		if err != nil {
			return err
		}
		return fn(ctx, s)
	})
}

func (m *Manager) load(ctx context.Context, sessionID string) (*domain.State, *graph.Graph, error) {
	st, err := m.store.Load(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if m.opts.resolver == nil {
		return nil, nil, errors.New("session manager has no resolver")
	}
	g, err := m.opts.resolver(ctx, st.AssessmentID)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve assessment %q: %w", st.AssessmentID, err)
	}
	return st, g, nil
}

// Load retrieves an existing session snapshot from the store.
func (m *Manager) Load(ctx context.Context, sessionID string) (*domain.State, error) {
	var state *domain.State
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		state, err = m.store.Load(ctx, sessionID)
		return err
	})
	return state, err
}

// Save persists the session state.
func (m *Manager) Save(ctx context.Context, sessionID string, state *domain.State) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Save(ctx, sessionID, state)
	})
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Delete(ctx, sessionID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying state store.
func (m *Manager) Store() ports.StateStore {
	return m.store
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	// Distributed Locking
	if m.opts.locker != nil {
		unlock, err := m.opts.locker.Lock(ctx, sessionID, m.opts.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.opts.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
