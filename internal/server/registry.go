package server

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/VaultAI/internal/wizard"
)

// Registry holds the live wizard sessions. Sessions are never persisted;
// idle ones are discarded by Sweep.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*wizard.Session
	ttl      time.Duration
	now      func() time.Time
	log      *zap.Logger
}

// NewRegistry builds a Registry that expires sessions idle for ttl.
func NewRegistry(ttl time.Duration, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*wizard.Session),
		ttl:      ttl,
		now:      time.Now,
		log:      log,
	}
}

// Put registers s under its id.
func (r *Registry) Put(s *wizard.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = s
}

// Get returns the session with id.
func (r *Registry) Get(id string) (*wizard.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove discards and forgets the session with id.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		s.Discard()
	}
	return ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep discards sessions idle for longer than the TTL and returns how many
// were removed. Sessions with a pending operation are kept.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)
	var expired []*wizard.Session
	r.mu.Lock()
	for id, s := range r.sessions {
		if s.Busy() || s.LastTouched().After(cutoff) {
			continue
		}
		expired = append(expired, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	for _, s := range expired {
		s.Discard()
	}
	if len(expired) > 0 {
		r.log.Info("expired sessions", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Run sweeps every interval until ctx is cancelled, then discards whatever
// is left.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*wizard.Session)
	r.mu.Unlock()
	for _, s := range sessions {
		s.Discard()
	}
}
