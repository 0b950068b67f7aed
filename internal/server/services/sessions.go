package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/car2chain/inspections/internal/common"
	"github.com/car2chain/inspections/internal/server/models"
	"github.com/car2chain/inspections/internal/server/repositories/repomanager"
	"github.com/car2chain/inspections/internal/server/repositories/sessions"
)

// tokenBytes is the entropy of a session token; the hex token string is
// twice this long.
const tokenBytes = 32

// SessionService issues, validates, and revokes opaque session tokens. All
// session state lives in the injected store; the service itself is stateless,
// so route middleware can call it concurrently.
type SessionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	credentials *CredentialService
	store       sessions.Repository
	ttl         time.Duration

	// now is a seam for expiry tests.
	now func() time.Time
}

func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, creds *CredentialService, store sessions.Repository, ttl time.Duration) *SessionService {
	return &SessionService{
		db:          db,
		repomanager: m,
		credentials: creds,
		store:       store,
		ttl:         ttl,
		now:         time.Now,
	}
}

// Login verifies the credentials and, on success, mints an opaque token from
// crypto/rand and records a session bound to the principal's current
// credential version. Each login produces an independent session.
func (s *SessionService) Login(ctx context.Context, username, secret string) (string, *models.Principal, error) {
	p, err := s.credentials.Verify(ctx, username, secret)
	if err != nil {
		return "", nil, err
	}

	token, err := common.MakeRandHexString(tokenBytes)
	if err != nil {
		return "", nil, common.ErrorInternal
	}

	now := s.now()
	session := &models.Session{
		Token:             token,
		PrincipalID:       p.ID,
		CredentialVersion: p.CredentialVersion,
		IssuedAt:          now,
		ExpiresAt:         now.Add(s.ttl),
	}
	if err := s.store.Create(ctx, session); err != nil {
		return "", nil, common.ErrorInternal
	}

	return token, p, nil
}

// Validate resolves a token to its principal. Failures are, in order of
// checking: ErrUnknownToken, ErrSessionRevoked, ErrSessionExpired, and
// ErrCredentialStale when the secret changed after the session was issued.
func (s *SessionService) Validate(ctx context.Context, token string) (*models.Principal, error) {
	session, err := s.store.Find(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUnknownToken
		}
		return nil, common.ErrorInternal
	}

	if session.Revoked {
		return nil, common.ErrSessionRevoked
	}
	if !s.now().Before(session.ExpiresAt) {
		return nil, common.ErrSessionExpired
	}

	p, err := s.repomanager.Principals(s.db).GetByID(ctx, session.PrincipalID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUnknownToken
		}
		return nil, common.ErrorInternal
	}

	if p.CredentialVersion != session.CredentialVersion {
		return nil, common.ErrCredentialStale
	}

	return p, nil
}

// Logout revokes the session. Unknown or already revoked tokens are fine;
// the operation is idempotent.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	if err := s.store.Revoke(ctx, token); err != nil {
		return common.ErrorInternal
	}
	return nil
}

// DeleteExpired drops sessions that have been expired for longer than their
// TTL; validation already rejects them, this just keeps the store small.
func (s *SessionService) DeleteExpired(ctx context.Context) (int64, error) {
	return s.store.DeleteExpired(ctx, s.now())
}
