package session

import (
	"context"
	"errors"
	"procurement-service/internal/model"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no live session matches the ID
var ErrNotFound = errors.New("session not found")

// Store persists browser sessions
type Store interface {
	Create(ctx context.Context, sess *model.Session) error
	Get(ctx context.Context, id string) (*model.Session, error)
	Delete(ctx context.Context, id string) error
}

// Purger is a Store that can drop its expired sessions in bulk
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// New builds a session for a bearer token. The session ends at ttl from now
// or at the token expiry, whichever comes first.
func New(token string, userID uint, email string, tokenExpiry *time.Time, ttl time.Duration, now time.Time) *model.Session {
	expires := now.Add(ttl)
	if tokenExpiry != nil && tokenExpiry.Before(expires) {
		expires = *tokenExpiry
	}
	return &model.Session{
		ID:          uuid.New().String(),
		AccessToken: token,
		UserID:      userID,
		Email:       email,
		ExpiresAt:   expires,
	}
}

// MemoryStore keeps sessions in process memory
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]model.Session
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]model.Session),
		now:      time.Now,
	}
}

// Create stores a copy of the session
func (s *MemoryStore) Create(ctx context.Context, sess *model.Session) error {
	if sess.ID == "" {
		return errors.New("session id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now
	s.sessions[sess.ID] = *sess
	return nil
}

// Get returns the session, or ErrNotFound when it is unknown or expired.
// Expired sessions are evicted.
func (s *MemoryStore) Get(ctx context.Context, id string) (*model.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	if sess.Expired(s.now()) {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	return &sess, nil
}

// Delete removes the session. Unknown IDs are ignored.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// PurgeExpired evicts every expired session and returns how many went
func (s *MemoryStore) PurgeExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var purged int64
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, id)
			purged++
		}
	}
	return purged, nil
}
