package session

import (
	"sync"
	"time"

	"github.com/abrasadev/ordering-auth-go/internal/domain"
)

// MemoryStore is a SessionStore that lives and dies with the process.
// Used by tests and by embedders that manage persistence themselves.
type MemoryStore struct {
	mu   sync.RWMutex
	sess *domain.Session
	ttl  time.Duration
}

// NewMemoryStore creates an in-memory store. ttl <= 0 disables expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl}
}

// Save replaces the current session.
func (s *MemoryStore) Save(token string, user domain.SessionUser) error {
	if token == "" {
		return &domain.ErrValidation{Field: "token", Message: "token vacío"}
	}
	if user.ID == 0 || user.Email == "" {
		return &domain.ErrValidation{Field: "user", Message: "perfil incompleto"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = &domain.Session{
		Token:   token,
		User:    user,
		SavedAt: time.Now().UTC(),
	}
	return nil
}

// Load returns the current session, or (nil, nil) when absent or expired.
func (s *MemoryStore) Load() (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.sess == nil {
		return nil, nil
	}
	if s.ttl > 0 && time.Since(s.sess.SavedAt) > s.ttl {
		return nil, nil
	}

	cp := *s.sess
	return &cp, nil
}

// Clear drops the current session. Idempotent.
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = nil
	return nil
}
