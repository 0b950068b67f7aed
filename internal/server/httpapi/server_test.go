package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/car2chain/inspections/internal/common"
	"github.com/car2chain/inspections/internal/dbx"
	"github.com/car2chain/inspections/internal/logging"
	"github.com/car2chain/inspections/internal/server/blobstore"
	"github.com/car2chain/inspections/internal/server/models"
	principalsrepo "github.com/car2chain/inspections/internal/server/repositories/principals"
	reportsrepo "github.com/car2chain/inspections/internal/server/repositories/reports"
	sessionsrepo "github.com/car2chain/inspections/internal/server/repositories/sessions"
	"github.com/car2chain/inspections/internal/server/services"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- in-memory repositories backing the full stack under test ---

type memPrincipalsRepo struct {
	mu     sync.Mutex
	nextID int
	byID   map[string]*models.Principal
}

func newMemPrincipalsRepo() *memPrincipalsRepo {
	return &memPrincipalsRepo{byID: make(map[string]*models.Principal)}
}

func (f *memPrincipalsRepo) Create(ctx context.Context, p *models.Principal) (*models.Principal, error) {
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

func (f *memPrincipalsRepo) GetByUsername(ctx context.Context, username string) (*models.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.byID {
		if p.Username == username {
			copied := *p
			return &copied, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *memPrincipalsRepo) GetByID(ctx context.Context, id string) (*models.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	copied := *p
	return &copied, nil
}

func (f *memPrincipalsRepo) UpdateCredential(ctx context.Context, id string, hash string, fromVersion int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok || p.CredentialVersion != fromVersion {
		return 0, common.ErrVersionConflict
	}
	p.CredentialHash = hash
	p.CredentialVersion++
	return p.CredentialVersion, nil
}

type memReportsRepo struct {
	mu      sync.Mutex
	order   []string
	reports map[string]*models.InspectionReport
}

func newMemReportsRepo() *memReportsRepo {
	return &memReportsRepo{reports: make(map[string]*models.InspectionReport)}
}

func (f *memReportsRepo) Create(ctx context.Context, r *models.InspectionReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *r
	copied.Attachments = nil
	f.reports[r.ID] = &copied
	f.order = append(f.order, r.ID)
	return nil
}

func (f *memReportsRepo) AddAttachment(ctx context.Context, a *models.AttachmentReference) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reports[a.ReportID]
	if !ok {
		return common.ErrorNotFound
	}
	copied := *a
	r.Attachments = append(r.Attachments, &copied)
	return nil
}

func (f *memReportsRepo) Get(ctx context.Context, id string) (*models.InspectionReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reports[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	copied := *r
	return &copied, nil
}

func (f *memReportsRepo) GetOwner(ctx context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reports[id]
	if !ok {
		return "", common.ErrorNotFound
	}
	return r.CreatedBy, nil
}

func (f *memReportsRepo) UpdateFields(ctx context.Context, id string, fields json.RawMessage, updatedAt time.Time) error {
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

func (f *memReportsRepo) Select(ctx context.Context, filter reportsrepo.Filter) iter.Seq2[*models.InspectionReport, error] {
	return func(yield func(*models.InspectionReport, error) bool) {
		f.mu.Lock()
		defer f.mu.Unlock()
		n := 0
		for i := len(f.order) - 1; i >= 0; i-- {
			r := f.reports[f.order[i]]
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

type memRepoManager struct {
	principals *memPrincipalsRepo
	sessions   sessionsrepo.Repository
	reports    *memReportsRepo
}

func newMemRepoManager() *memRepoManager {
	return &memRepoManager{
		principals: newMemPrincipalsRepo(),
		sessions:   sessionsrepo.NewInMemoryRepository(),
		reports:    newMemReportsRepo(),
	}
}

func (m *memRepoManager) RunMigrations(context.Context, *sql.DB) error        { return nil }
func (m *memRepoManager) Principals(db dbx.DBTX) principalsrepo.Repository    { return m.principals }
func (m *memRepoManager) Sessions(db dbx.DBTX) sessionsrepo.Repository       { return m.sessions }
func (m *memRepoManager) Reports(db dbx.DBTX) reportsrepo.Repository         { return m.reports }

// --- harness ---

type testEnv struct {
	server *Server
	router http.Handler
	mock   sqlmock.Sqlmock
	creds  *services.CredentialService
}

func seedPrincipal(env *testEnv, username, secret string) error {
	_, err := env.creds.Seed(context.Background(), username, secret)
	return err
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	rm := newMemRepoManager()
	creds, err := services.NewCredentialService(db, rm, bcrypt.MinCost)
	require.NoError(t, err)
	sess := services.NewSessionService(db, rm, creds, rm.sessions, 24*time.Hour)

	local, err := blobstore.NewLocal(t.TempDir())
	require.NoError(t, err)
	reports := services.NewReportService(db, rm, services.NewAttachmentService(local, 1<<20))

	_, err = creds.Seed(context.Background(), "carchainadmin", "carchain123")
	require.NoError(t, err)

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := NewServer(":0", logger, sess, creds, reports, 10<<20, local.Dir())

	return &testEnv{server: srv, router: srv.Router(), mock: mock, creds: creds}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

// expectTx queues sqlmock expectations for n committed transactions.
func (e *testEnv) expectTx(n int) {
	for i := 0; i < n; i++ {
		e.mock.ExpectBegin()
		e.mock.ExpectCommit()
	}
}

func (e *testEnv) expectRolledBackTx() {
	e.mock.ExpectBegin()
	e.mock.ExpectRollback()
}
