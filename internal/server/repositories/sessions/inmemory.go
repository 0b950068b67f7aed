package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/car2chain/inspections/internal/common"
	"github.com/car2chain/inspections/internal/server/models"
)

// InMemoryRepository is a process-local session store guarded by an RWMutex.
// Suitable for a single-instance deployment and for tests; sessions are lost
// on restart, which only forces a re-login.
type InMemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{sessions: make(map[string]*models.Session)}
}

func (r *InMemoryRepository) Create(ctx context.Context, s *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *s
	r.sessions[s.Token] = &copied
	return nil
}

func (r *InMemoryRepository) Find(ctx context.Context, token string) (*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *InMemoryRepository) Revoke(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[token]; ok {
		s.Revoked = true
	}
	return nil
}

func (r *InMemoryRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for token, s := range r.sessions {
		if s.ExpiresAt.Before(cutoff) {
			delete(r.sessions, token)
			n++
		}
	}
	return n, nil
}
