// Package principals provides a PostgreSQL-backed repository for principal
// records, including the serialized credential-version bump used by the
// change-password flow.
package principals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/car2chain/inspections/internal/common"
	"github.com/car2chain/inspections/internal/dbx"
	"github.com/car2chain/inspections/internal/server/models"
)

// PostgresRepository implements principal storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a principal and returns it with the generated ID.
func (r *PostgresRepository) Create(ctx context.Context, p *models.Principal) (*models.Principal, error) {
	query := `
		INSERT INTO principals (username, credential_hash, credential_version)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		p.Username, p.CredentialHash, p.CredentialVersion).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

// GetByUsername returns the principal with the given username.
// If not found, it returns common.ErrorNotFound.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.Principal, error) {
	query := `
		SELECT id, username, credential_hash, credential_version, created_at
		FROM principals
		WHERE username = $1
	`
	p := &models.Principal{}
	err := r.db.QueryRowContext(ctx, query, username).
		Scan(&p.ID, &p.Username, &p.CredentialHash, &p.CredentialVersion, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

// GetByID returns the principal with the given ID.
// If not found, it returns common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Principal, error) {
	query := `
		SELECT id, username, credential_hash, credential_version, created_at
		FROM principals
		WHERE id = $1
	`
	p := &models.Principal{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&p.ID, &p.Username, &p.CredentialHash, &p.CredentialVersion, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

// UpdateCredential performs the guarded read-modify-write for a secret
// change. The WHERE clause on credential_version serializes concurrent
// changes; the loser observes common.ErrVersionConflict.
func (r *PostgresRepository) UpdateCredential(ctx context.Context, id string, hash string, fromVersion int64) (int64, error) {
	query := `
		UPDATE principals
		SET credential_hash = $2, credential_version = credential_version + 1
		WHERE id = $1 AND credential_version = $3
		RETURNING credential_version
	`
	var version int64
	err := r.db.QueryRowContext(ctx, query, id, hash, fromVersion).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrVersionConflict
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return version, nil
}
