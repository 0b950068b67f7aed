// Package reports provides PostgreSQL-backed persistence for inspection
// reports. Inspection fields live in a JSONB column and stay opaque to the
// server; attachment references are ordered rows owned by one report.
package reports

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"time"

	"github.com/car2chain/inspections/internal/common"
	"github.com/car2chain/inspections/internal/dbx"
	"github.com/car2chain/inspections/internal/server/models"
)

// PostgresRepository implements report storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the report row. The caller supplies the generated ID so the
// same identifier can be used for attachment rows inside one transaction.
func (r *PostgresRepository) Create(ctx context.Context, report *models.InspectionReport) error {
	query := `
		INSERT INTO reports (id, created_by, fields, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.ExecContext(ctx, query,
		report.ID, report.CreatedBy, []byte(report.Fields), report.CreatedAt, report.UpdatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// AddAttachment inserts one attachment reference row.
func (r *PostgresRepository) AddAttachment(ctx context.Context, a *models.AttachmentReference) error {
	query := `
		INSERT INTO attachments (id, report_id, position, storage_key, content_hash, size_bytes, mime_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := r.db.ExecContext(ctx, query,
		a.ID, a.ReportID, a.Position, a.StorageKey, a.ContentHash, a.Size, a.MimeType); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Get returns one report with its ordered attachments.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.InspectionReport, error) {
	query := `
		SELECT id, created_by, fields, created_at, updated_at
		FROM reports
		WHERE id = $1
	`
	report := &models.InspectionReport{}
	var fields []byte
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&report.ID, &report.CreatedBy, &fields, &report.CreatedAt, &report.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	report.Fields = json.RawMessage(fields)

	attachments, err := r.selectAttachments(ctx, report.ID)
	if err != nil {
		return nil, err
	}
	report.Attachments = attachments
	return report, nil
}

// GetOwner returns the creating principal's ID for an ownership check
// without loading the whole record.
func (r *PostgresRepository) GetOwner(ctx context.Context, id string) (string, error) {
	query := `
		SELECT created_by FROM reports
		WHERE id = $1
	`
	var owner string
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return owner, nil
}

// UpdateFields replaces the inspection fields of an existing report.
func (r *PostgresRepository) UpdateFields(ctx context.Context, id string, fields json.RawMessage, updatedAt time.Time) error {
	query := `
		UPDATE reports SET fields = $2, updated_at = $3
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, []byte(fields), updatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// Select streams matching reports, newest first. The cursor reflects the
// query's point in time; it cannot be restarted.
func (r *PostgresRepository) Select(ctx context.Context, f Filter) iter.Seq2[*models.InspectionReport, error] {
	query := `
		SELECT id, created_by, fields, created_at, updated_at
		FROM reports
	`
	var (
		args  []any
		where string
	)
	if f.CreatedBy != "" {
		args = append(args, f.CreatedBy)
		where = " WHERE created_by = $" + strconv.Itoa(len(args))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		if where == "" {
			where = " WHERE"
		} else {
			where += " AND"
		}
		where += " created_at >= $" + strconv.Itoa(len(args))
	}
	query += where + " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	return func(yield func(*models.InspectionReport, error) bool) {
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(nil, fmt.Errorf("failed to select reports: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			report := &models.InspectionReport{}
			var fields []byte
			if err := rows.Scan(&report.ID, &report.CreatedBy, &fields,
				&report.CreatedAt, &report.UpdatedAt); err != nil {
				yield(nil, err)
				return
			}
			report.Fields = json.RawMessage(fields)

			attachments, err := r.selectAttachments(ctx, report.ID)
			if err != nil {
				yield(nil, err)
				return
			}
			report.Attachments = attachments

			if !yield(report, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, err)
		}
	}
}

func (r *PostgresRepository) selectAttachments(ctx context.Context, reportID string) ([]*models.AttachmentReference, error) {
	query := `
		SELECT id, report_id, position, storage_key, content_hash, size_bytes, mime_type
		FROM attachments
		WHERE report_id = $1
		ORDER BY position
	`
	rows, err := r.db.QueryContext(ctx, query, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to select attachments: %w", err)
	}
	defer rows.Close()

	var result []*models.AttachmentReference
	for rows.Next() {
		var a models.AttachmentReference
		if err := rows.Scan(&a.ID, &a.ReportID, &a.Position,
			&a.StorageKey, &a.ContentHash, &a.Size, &a.MimeType); err != nil {
			return nil, err
		}
		result = append(result, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
