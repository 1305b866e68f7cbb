// Package session keeps editing sessions in process memory. Nothing is
// persisted; a restart drops every session.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leavend/photorefine/internal/editor"
	"github.com/leavend/photorefine/internal/infra"
)

// DefaultIdleTTL is used when Options.IdleTTL is not positive.
const DefaultIdleTTL = 30 * time.Minute

// Session pairs an identifier with its controller.
type Session struct {
	ID         string
	Locale     string
	CreatedAt  time.Time
	Controller *editor.Controller

	lastSeen time.Time
}

// Factory builds the controller for a new session.
type Factory func(locale string) *editor.Controller

// Options configures a Registry.
type Options struct {
	Factory Factory
	IdleTTL time.Duration
	Logger  *infra.Logger
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Registry maps session ids to sessions and expires idle ones.
type Registry struct {
	factory Factory
	ttl     time.Duration
	logger  *infra.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	ttl := opts.IdleTTL
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Registry{
		factory:  opts.Factory,
		ttl:      ttl,
		logger:   logger,
		now:      now,
		sessions: make(map[string]*Session),
	}
}

// Create registers a new session for the given locale.
func (r *Registry) Create(locale string) *Session {
	now := r.now()
	s := &Session{
		ID:         uuid.NewString(),
		Locale:     locale,
		CreatedAt:  now,
		Controller: r.factory(locale),
		lastSeen:   now,
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	r.logger.Debug().Str("session_id", s.ID).Str("locale", locale).Msg("session: created")
	return s
}

// Get returns the session and marks it as recently used.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	s.lastSeen = r.now()
	return s, true
}

// Delete removes the session and detaches any edit it has running.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		s.Controller.Reset()
	}
	return ok
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions idle for longer than the TTL and returns how many
// were removed. Sessions with an edit in flight are never expired.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)
	var expired []*Session

	r.mu.Lock()
	for id, s := range r.sessions {
		if !s.lastSeen.Before(cutoff) || s.Controller.State().IsLoading {
			continue
		}
		expired = append(expired, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Controller.Reset()
		r.logger.Debug().Str("session_id", s.ID).Msg("session: expired")
	}
	return len(expired)
}

// Run sweeps every interval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug().Msg("session: janitor stopped")
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Info().Int("expired", n).Int("live", r.Len()).Msg("session: swept idle sessions")
			}
		}
	}
}
