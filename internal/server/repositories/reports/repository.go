package reports

import (
	"context"
	"encoding/json"
	"iter"
	"time"

	"github.com/car2chain/inspections/internal/server/models"
)

// Filter narrows a List query. Zero values mean "no constraint".
type Filter struct {
	CreatedBy string
	Since     time.Time
	Limit     int
}

// Repository persists inspection reports and their attachment references.
type Repository interface {
	Create(ctx context.Context, r *models.InspectionReport) error
	AddAttachment(ctx context.Context, a *models.AttachmentReference) error

	// Get returns the report with its ordered attachments, or
	// common.ErrorNotFound.
	Get(ctx context.Context, id string) (*models.InspectionReport, error)

	// GetOwner returns the creating principal's ID, or common.ErrorNotFound.
	GetOwner(ctx context.Context, id string) (string, error)

	UpdateFields(ctx context.Context, id string, fields json.RawMessage, updatedAt time.Time) error

	// Select returns a point-in-time cursor over matching reports, newest
	// first. The sequence is finite and single-use; an error, if any, is
	// yielded as the final element.
	Select(ctx context.Context, f Filter) iter.Seq2[*models.InspectionReport, error]
}
