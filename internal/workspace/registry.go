package workspace

import (
	"procurement-service/internal/model"
	"sync"
	"time"
)

// Factory builds the workspace of a new session
type Factory func(sess *model.Session) *Workspace

type entry struct {
	ws        *Workspace
	expiresAt time.Time
}

// Registry holds one workspace per browser session
type Registry struct {
	mu      sync.Mutex
	factory Factory
	items   map[string]entry
}

// NewRegistry creates an empty registry
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		factory: factory,
		items:   make(map[string]entry),
	}
}

// Get returns the workspace of the session, creating it on first use
func (r *Registry) Get(sess *model.Session) *Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.items[sess.ID]; ok {
		e.expiresAt = sess.ExpiresAt
		r.items[sess.ID] = e
		return e.ws
	}
	w := r.factory(sess)
	r.items[sess.ID] = entry{ws: w, expiresAt: sess.ExpiresAt}
	return w
}

// Drop discards the workspace of a session
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, sessionID)
}

// Sweep drops the workspaces whose session has expired at now and returns how
// many went
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := 0
	for id, e := range r.items {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(r.items, id)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of live workspaces
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
