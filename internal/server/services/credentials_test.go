package services

import (
	"context"
	"testing"

	"github.com/car2chain/inspections/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestCredentialService_VerifyKnownPrincipal(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()

	s, err := NewCredentialService(db, rm, bcrypt.MinCost)
	require.NoError(t, err)

	created, err := s.Seed(context.Background(), "operator", "correct horse")
	require.NoError(t, err)
	require.True(t, created)

	p, err := s.Verify(context.Background(), "operator", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "operator", p.Username)
	assert.Equal(t, int64(1), p.CredentialVersion)
	assert.NotContains(t, p.CredentialHash, "correct horse")
}

func TestCredentialService_VerifyRejectsNearMiss(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()

	s, err := NewCredentialService(db, rm, bcrypt.MinCost)
	require.NoError(t, err)

	_, err = s.Seed(context.Background(), "operator", "secret-1")
	require.NoError(t, err)

	for _, secret := range []string{"secret-2", "secret-1 ", "Secret-1", ""} {
		_, err := s.Verify(context.Background(), "operator", secret)
		assert.ErrorIs(t, err, common.ErrInvalidCredential, "secret %q", secret)
	}
}

func TestCredentialService_VerifyUnknownUsernameIndistinguishable(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()

	s, err := NewCredentialService(db, rm, bcrypt.MinCost)
	require.NoError(t, err)

	_, err = s.Verify(context.Background(), "nobody", "whatever")
	assert.ErrorIs(t, err, common.ErrInvalidCredential)
	assert.NotErrorIs(t, err, common.ErrorNotFound)
}

func TestCredentialService_ChangeSecret(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()

	s, err := NewCredentialService(db, rm, bcrypt.MinCost)
	require.NoError(t, err)

	_, err = s.Seed(context.Background(), "operator", "old-secret")
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err = s.ChangeSecret(context.Background(), "operator", "old-secret", "new-secret")
	require.NoError(t, err)

	_, err = s.Verify(context.Background(), "operator", "old-secret")
	assert.ErrorIs(t, err, common.ErrInvalidCredential)

	p, err := s.Verify(context.Background(), "operator", "new-secret")
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.CredentialVersion)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialService_ChangeSecretWrongOld(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()

	s, err := NewCredentialService(db, rm, bcrypt.MinCost)
	require.NoError(t, err)

	_, err = s.Seed(context.Background(), "operator", "old-secret")
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err = s.ChangeSecret(context.Background(), "operator", "guess", "new-secret")
	assert.ErrorIs(t, err, common.ErrInvalidCredential)

	// The stored credential is untouched.
	_, err = s.Verify(context.Background(), "operator", "old-secret")
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialService_ChangeSecretEmptyNew(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()

	s, err := NewCredentialService(db, rm, bcrypt.MinCost)
	require.NoError(t, err)

	err = s.ChangeSecret(context.Background(), "operator", "old-secret", "")
	assert.ErrorIs(t, err, common.ErrMalformedPayload)
}

func TestCredentialService_SeedIsIdempotent(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()

	s, err := NewCredentialService(db, rm, bcrypt.MinCost)
	require.NoError(t, err)

	created, err := s.Seed(context.Background(), "operator", "secret")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.Seed(context.Background(), "operator", "other")
	require.NoError(t, err)
	assert.False(t, created)

	// The original secret survives the second seed.
	_, err = s.Verify(context.Background(), "operator", "secret")
	assert.NoError(t, err)
}
