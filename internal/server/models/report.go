package models

import (
	"encoding/json"
	"time"
)

// InspectionReport is a persisted vehicle-inspection record. Fields is the
// operator-supplied document and stays opaque to the server (JSONB in
// Postgres). Attachments are ordered and owned by exactly this report.
type InspectionReport struct {
	ID          string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Fields      json.RawMessage
	Attachments []*AttachmentReference
}
