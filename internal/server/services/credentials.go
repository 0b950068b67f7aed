// Package services contains server-side business logic: credential
// verification, session lifecycle, report persistence, and attachment
// handling.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/car2chain/inspections/internal/common"
	"github.com/car2chain/inspections/internal/dbx"
	"github.com/car2chain/inspections/internal/server/models"
	"github.com/car2chain/inspections/internal/server/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

// CredentialService verifies and updates principal credentials. Secrets are
// stored only as bcrypt hashes; a successful change bumps the credential
// version, which invalidates every session issued against the old secret.
type CredentialService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	cost        int

	// dummyHash is compared against when the identifier is unknown, so an
	// unknown username costs the same as a wrong password and existence
	// does not leak through timing.
	dummyHash []byte
}

// NewCredentialService constructs the service. cost is the bcrypt work
// factor, clamped to the valid range; values <= 0 select bcrypt.DefaultCost.
func NewCredentialService(db *sql.DB, m repomanager.RepositoryManager, cost int) (*CredentialService, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("credential-placeholder"), cost)
	if err != nil {
		return nil, fmt.Errorf("hashing placeholder: %w", err)
	}

	return &CredentialService{
		db:          db,
		repomanager: m,
		cost:        cost,
		dummyHash:   dummy,
	}, nil
}

// Verify checks the presented secret for the given username and returns the
// principal on success. Unknown usernames and wrong secrets both return
// common.ErrInvalidCredential.
func (s *CredentialService) Verify(ctx context.Context, username, secret string) (*models.Principal, error) {
	repo := s.repomanager.Principals(s.db)

	p, err := repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// Burn the same hashing work as the known-user path.
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(secret))
			return nil, common.ErrInvalidCredential
		}
		return nil, common.ErrorInternal
	}

	if err := bcrypt.CompareHashAndPassword([]byte(p.CredentialHash), []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, common.ErrInvalidCredential
		}
		return nil, common.ErrorInternal
	}

	return p, nil
}

// ChangeSecret replaces the principal's secret after verifying the old one.
// The version bump runs inside a transaction with an optimistic guard, so
// concurrent changes serialize and the loser gets ErrVersionConflict.
func (s *CredentialService) ChangeSecret(ctx context.Context, username, oldSecret, newSecret string) error {
	if newSecret == "" {
		return fmt.Errorf("%w: empty secret", common.ErrMalformedPayload)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newSecret), s.cost)
	if err != nil {
		return fmt.Errorf("hashing secret: %w", err)
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Principals(tx)

		p, err := repo.GetByUsername(ctx, username)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidCredential
			}
			return err
		}

		if err := bcrypt.CompareHashAndPassword([]byte(p.CredentialHash), []byte(oldSecret)); err != nil {
			return common.ErrInvalidCredential
		}

		if _, err := repo.UpdateCredential(ctx, p.ID, string(hash), p.CredentialVersion); err != nil {
			return fmt.Errorf("updating credential: %w", err)
		}
		return nil
	})
}

// Seed creates the principal with the given secret if it does not exist yet.
// Returns true when a principal was created.
func (s *CredentialService) Seed(ctx context.Context, username, secret string) (bool, error) {
	repo := s.repomanager.Principals(s.db)

	if _, err := repo.GetByUsername(ctx, username); err == nil {
		return false, nil
	} else if !errors.Is(err, common.ErrorNotFound) {
		return false, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return false, fmt.Errorf("hashing secret: %w", err)
	}

	if _, err := repo.Create(ctx, &models.Principal{
		Username:          username,
		CredentialHash:    string(hash),
		CredentialVersion: 1,
	}); err != nil {
		return false, fmt.Errorf("creating principal: %w", err)
	}
	return true, nil
}
