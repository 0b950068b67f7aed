package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/car2chain/inspections/internal/common"
	"github.com/car2chain/inspections/internal/dbx"
	"github.com/car2chain/inspections/internal/server/models"
	"github.com/car2chain/inspections/internal/server/repositories/repomanager"
	"github.com/car2chain/inspections/internal/server/repositories/reports"
	"github.com/google/uuid"
)

// ReportService persists inspection reports. Attachment payloads are staged
// into blob storage first; the report row and its attachment rows are then
// committed in one transaction, so a creation either lands whole or not at
// all.
type ReportService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	attachments *AttachmentService

	now func() time.Time
}

func NewReportService(db *sql.DB, m repomanager.RepositoryManager, attachments *AttachmentService) *ReportService {
	return &ReportService{
		db:          db,
		repomanager: m,
		attachments: attachments,
		now:         time.Now,
	}
}

// Create stores a new report for the principal. Report identifiers are
// UUIDv4, so concurrent creations cannot collide. Any attachment failure
// aborts the whole creation: no report row, no attachment rows, and blobs
// written for this attempt are removed (blobs shared with existing reports
// through deduplication are left alone).
func (s *ReportService) Create(ctx context.Context, principalID string, fields json.RawMessage, raw []RawAttachment) (*models.InspectionReport, error) {
	if len(fields) == 0 {
		fields = json.RawMessage("{}")
	}

	now := s.now()
	report := &models.InspectionReport{
		ID:        uuid.New().String(),
		CreatedBy: principalID,
		CreatedAt: now,
		UpdatedAt: now,
		Fields:    fields,
	}

	var stagedKeys []string
	cleanup := func() {
		for _, key := range stagedKeys {
			_ = s.attachments.Discard(ctx, key)
		}
	}

	for i, r := range raw {
		ref, stored, err := s.attachments.Store(ctx, r.Data, r.MimeType)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("%w: attachment %d: %w", common.ErrAttachmentFailure, i, err)
		}
		if stored {
			stagedKeys = append(stagedKeys, ref.StorageKey)
		}
		ref.ID = uuid.New().String()
		ref.ReportID = report.ID
		ref.Position = i
		report.Attachments = append(report.Attachments, ref)
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Reports(tx)
		if err := repo.Create(ctx, report); err != nil {
			return err
		}
		for _, ref := range report.Attachments {
			if err := repo.AddAttachment(ctx, ref); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("error creating report: %w", err)
	}

	return report, nil
}

// Get returns one report with its attachments, or common.ErrorNotFound.
func (s *ReportService) Get(ctx context.Context, id string) (*models.InspectionReport, error) {
	return s.repomanager.Reports(s.db).Get(ctx, id)
}

// List returns a point-in-time cursor over reports matching the filter. The
// sequence is finite and single-use.
func (s *ReportService) List(ctx context.Context, f reports.Filter) iter.Seq2[*models.InspectionReport, error] {
	return s.repomanager.Reports(s.db).Select(ctx, f)
}

// Update amends the inspection fields of an existing report. Only the
// creating principal may update it; anyone else gets common.ErrForbidden
// regardless of field contents.
func (s *ReportService) Update(ctx context.Context, principalID, id string, fields json.RawMessage) (*models.InspectionReport, error) {
	if len(fields) == 0 {
		fields = json.RawMessage("{}")
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Reports(tx)

		owner, err := repo.GetOwner(ctx, id)
		if err != nil {
			return err
		}
		if owner != principalID {
			return common.ErrForbidden
		}

		return repo.UpdateFields(ctx, id, fields, s.now())
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) || errors.Is(err, common.ErrForbidden) {
			return nil, err
		}
		return nil, fmt.Errorf("error updating report: %w", err)
	}

	return s.Get(ctx, id)
}
