package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/car2chain/inspections/internal/common"
	"github.com/car2chain/inspections/internal/dbx"
	"github.com/car2chain/inspections/internal/server/models"
	principalsrepo "github.com/car2chain/inspections/internal/server/repositories/principals"
	reportsrepo "github.com/car2chain/inspections/internal/server/repositories/reports"
	sessionsrepo "github.com/car2chain/inspections/internal/server/repositories/sessions"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

// --- fakes ---

type fakePrincipalsRepo struct {
	mu     sync.Mutex
	nextID int
	byID   map[string]*models.Principal

	getErr    error
	updateErr error
}

func newFakePrincipalsRepo() *fakePrincipalsRepo {
	return &fakePrincipalsRepo{byID: make(map[string]*models.Principal)}
}

func (f *fakePrincipalsRepo) Create(ctx context.Context, p *models.Principal) (*models.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	copied := *p
	copied.ID = fmt.Sprintf("principal-%d", f.nextID)
	copied.CreatedAt = time.Now()
	f.byID[copied.ID] = &copied
	out := copied
	return &out, nil
}

func (f *fakePrincipalsRepo) GetByUsername(ctx context.Context, username string) (*models.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, p := range f.byID {
		if p.Username == username {
			copied := *p
			return &copied, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakePrincipalsRepo) GetByID(ctx context.Context, id string) (*models.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	copied := *p
	return &copied, nil
}

func (f *fakePrincipalsRepo) UpdateCredential(ctx context.Context, id string, hash string, fromVersion int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return 0, f.updateErr
	}
	p, ok := f.byID[id]
	if !ok || p.CredentialVersion != fromVersion {
		return 0, common.ErrVersionConflict
	}
	p.CredentialHash = hash
	p.CredentialVersion++
	return p.CredentialVersion, nil
}

type fakeReportsRepo struct {
	mu      sync.Mutex
	reports map[string]*models.InspectionReport

	createErr        error
	addAttachmentErr error
	selectErr        error
}

func newFakeReportsRepo() *fakeReportsRepo {
	return &fakeReportsRepo{reports: make(map[string]*models.InspectionReport)}
}

func (f *fakeReportsRepo) Create(ctx context.Context, r *models.InspectionReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	copied := *r
	copied.Attachments = nil
	f.reports[r.ID] = &copied
	return nil
}

func (f *fakeReportsRepo) AddAttachment(ctx context.Context, a *models.AttachmentReference) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addAttachmentErr != nil {
		return f.addAttachmentErr
	}
	r, ok := f.reports[a.ReportID]
	if !ok {
		return common.ErrorNotFound
	}
	copied := *a
	r.Attachments = append(r.Attachments, &copied)
	return nil
}

func (f *fakeReportsRepo) Get(ctx context.Context, id string) (*models.InspectionReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reports[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	copied := *r
	return &copied, nil
}

func (f *fakeReportsRepo) GetOwner(ctx context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reports[id]
	if !ok {
		return "", common.ErrorNotFound
	}
	return r.CreatedBy, nil
}

func (f *fakeReportsRepo) UpdateFields(ctx context.Context, id string, fields json.RawMessage, updatedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reports[id]
	if !ok {
		return common.ErrorNotFound
	}
	r.Fields = fields
	r.UpdatedAt = updatedAt
	return nil
}

func (f *fakeReportsRepo) Select(ctx context.Context, filter reportsrepo.Filter) iter.Seq2[*models.InspectionReport, error] {
	return func(yield func(*models.InspectionReport, error) bool) {
		if f.selectErr != nil {
			yield(nil, f.selectErr)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		n := 0
		for _, r := range f.reports {
			if filter.CreatedBy != "" && r.CreatedBy != filter.CreatedBy {
				continue
			}
			if filter.Limit > 0 && n >= filter.Limit {
				return
			}
			copied := *r
			if !yield(&copied, nil) {
				return
			}
			n++
		}
	}
}

type fakeRepoManager struct {
	principals *fakePrincipalsRepo
	sessions   sessionsrepo.Repository
	reports    *fakeReportsRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		principals: newFakePrincipalsRepo(),
		sessions:   sessionsrepo.NewInMemoryRepository(),
		reports:    newFakeReportsRepo(),
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error         { return nil }
func (m *fakeRepoManager) Principals(db dbx.DBTX) principalsrepo.Repository     { return m.principals }
func (m *fakeRepoManager) Sessions(db dbx.DBTX) sessionsrepo.Repository        { return m.sessions }
func (m *fakeRepoManager) Reports(db dbx.DBTX) reportsrepo.Repository          { return m.reports }

type fakeBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	mimes map[string]string

	deleted []string

	putErr    error
	existsErr error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: make(map[string][]byte), mimes: make(map[string]string)}
}

func (f *fakeBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.blobs[key] = append([]byte(nil), data...)
	f.mimes[key] = contentType
	return nil
}

func (f *fakeBlobStore) Exists(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.blobs[key]
	return ok, nil
}

func (f *fakeBlobStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blobs, key)
	f.deleted = append(f.deleted, key)
	return nil
}
