// Package server initializes and runs the inspection backend: database and
// blob storage setup, schema migrations, default-principal seeding, and the
// HTTP server with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/car2chain/inspections/internal/logging"
	"github.com/car2chain/inspections/internal/server/blobstore"
	"github.com/car2chain/inspections/internal/server/config"
	"github.com/car2chain/inspections/internal/server/httpapi"
	"github.com/car2chain/inspections/internal/server/repositories/repomanager"
	"github.com/car2chain/inspections/internal/server/services"
)

// janitorInterval is how often expired sessions are swept from the store.
const janitorInterval = time.Hour

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	sessions *services.SessionService
	http     *httpapi.Server
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	credentials, err := services.NewCredentialService(db, rm, c.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("credential service init error: %w", err)
	}
	sessions := services.NewSessionService(db, rm, credentials, rm.Sessions(db), c.SessionTTL)

	var (
		blobs      blobstore.Store
		uploadsDir string
	)
	switch c.StorageBackend {
	case config.StorageBackendS3:
		blobs, err = blobstore.NewS3(ctx, blobstore.S3Options{
			RootUser:     c.S3RootUser,
			RootPassword: c.S3RootPassword,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 init error: %w", err)
		}
	case config.StorageBackendLocal:
		local, err := blobstore.NewLocal(c.UploadsDir)
		if err != nil {
			return nil, fmt.Errorf("local storage init error: %w", err)
		}
		blobs = local
		uploadsDir = local.Dir()
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}

	attachments := services.NewAttachmentService(blobs, c.MaxAttachmentBytes)
	reports := services.NewReportService(db, rm, attachments)

	created, err := credentials.Seed(ctx, c.AdminUsername, c.AdminPassword)
	if err != nil {
		return nil, fmt.Errorf("seeding error: %w", err)
	}
	if created {
		logger.Info(ctx, "Seeded administrative principal", "username", c.AdminUsername)
	}

	// The shipped default credentials are for bootstrap only; nag until
	// they are rotated.
	defaults := &config.Config{}
	defaults.LoadDefaults()
	if _, err := credentials.Verify(ctx, defaults.AdminUsername, defaults.AdminPassword); err == nil {
		logger.Warn(ctx, "Default admin credentials are active; change them via /api/auth/change-password")
	}

	httpServer := httpapi.NewServer(c.EndpointAddr, logger, sessions, credentials, reports,
		c.MaxBodyBytes, uploadsDir)

	return &App{
		config:   c,
		logger:   logger,
		db:       db,
		sessions: sessions,
		http:     httpServer,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// runSessionJanitor periodically deletes expired sessions until ctx is done.
func (app *App) runSessionJanitor(ctx context.Context) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.sessions.DeleteExpired(ctx)
			if err != nil {
				app.logger.Error(ctx, "session cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				app.logger.Info(ctx, "expired sessions removed", "count", n)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.http.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.runSessionJanitor(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
}
