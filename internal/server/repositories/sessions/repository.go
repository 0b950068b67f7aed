package sessions

import (
	"context"
	"time"

	"github.com/car2chain/inspections/internal/server/models"
)

// Repository is the session-store capability: insert, lookup, revoke. Keeping
// it this narrow lets a shared external store replace the bundled
// implementations without touching the session service.
type Repository interface {
	Create(ctx context.Context, s *models.Session) error

	// Find returns the session for the given token, revoked or not.
	// If the token was never issued, it returns common.ErrorNotFound.
	Find(ctx context.Context, token string) (*models.Session, error)

	// Revoke marks the session revoked. Revoking an unknown or already
	// revoked token is not an error; the flag is never cleared.
	Revoke(ctx context.Context, token string) error

	// DeleteExpired removes sessions whose expiry is before cutoff and
	// returns how many were deleted.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
