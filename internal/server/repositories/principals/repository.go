package principals

import (
	"context"

	"github.com/car2chain/inspections/internal/server/models"
)

// Repository persists principals and their credential state.
type Repository interface {
	Create(ctx context.Context, p *models.Principal) (*models.Principal, error)
	GetByUsername(ctx context.Context, username string) (*models.Principal, error)
	GetByID(ctx context.Context, id string) (*models.Principal, error)

	// UpdateCredential replaces the credential hash and bumps the credential
	// version, guarded by the version the caller read. Returns the new
	// version, or common.ErrVersionConflict if fromVersion is no longer
	// current (a concurrent change won).
	UpdateCredential(ctx context.Context, id string, hash string, fromVersion int64) (int64, error)
}
