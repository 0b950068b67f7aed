package services

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/car2chain/inspections/internal/common"
	"github.com/car2chain/inspections/internal/server/blobstore"
	"github.com/car2chain/inspections/internal/server/models"
)

const defaultMimeType = "application/octet-stream"

// RawAttachment is an inbound encoded image payload as submitted by a
// client: base64 data (bare or data-URL form) plus a declared MIME type.
type RawAttachment struct {
	Data     string
	MimeType string
}

// AttachmentService decodes image payloads and writes them to blob storage
// under content-addressed keys, deduplicating identical bytes.
type AttachmentService struct {
	blobs    blobstore.Store
	maxBytes int64
}

func NewAttachmentService(blobs blobstore.Store, maxBytes int64) *AttachmentService {
	return &AttachmentService{blobs: blobs, maxBytes: maxBytes}
}

// Store decodes one payload and persists it. It returns the reference and
// whether bytes were newly written (false when an identical blob already
// existed). Decode failures and oversize payloads return
// common.ErrMalformedPayload; storage faults return common.ErrAttachmentFailure.
func (s *AttachmentService) Store(ctx context.Context, encoded, declaredMime string) (*models.AttachmentReference, bool, error) {
	payload, headerMime, err := splitDataURL(encoded)
	if err != nil {
		return nil, false, err
	}

	// Cheap upper bound before decoding: 4 base64 chars per 3 bytes.
	if s.maxBytes > 0 && int64(len(payload))/4*3 > s.maxBytes {
		return nil, false, fmt.Errorf("%w: payload exceeds %d bytes", common.ErrMalformedPayload, s.maxBytes)
	}

	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, false, fmt.Errorf("%w: invalid base64: %v", common.ErrMalformedPayload, err)
	}
	if len(decoded) == 0 {
		return nil, false, fmt.Errorf("%w: empty payload", common.ErrMalformedPayload)
	}
	if s.maxBytes > 0 && int64(len(decoded)) > s.maxBytes {
		return nil, false, fmt.Errorf("%w: payload exceeds %d bytes", common.ErrMalformedPayload, s.maxBytes)
	}

	mime := declaredMime
	if mime == "" {
		mime = headerMime
	}
	if mime == "" {
		mime = defaultMimeType
	}

	sum := sha256.Sum256(decoded)
	hash := hex.EncodeToString(sum[:])
	key := fmt.Sprintf("attachments/%s/%s", hash[:2], hash)

	exists, err := s.blobs.Exists(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", common.ErrAttachmentFailure, err)
	}
	if !exists {
		if err := s.blobs.Put(ctx, key, decoded, mime); err != nil {
			return nil, false, fmt.Errorf("%w: %v", common.ErrAttachmentFailure, err)
		}
	}

	return &models.AttachmentReference{
		StorageKey:  key,
		ContentHash: hash,
		Size:        int64(len(decoded)),
		MimeType:    mime,
	}, !exists, nil
}

// Discard removes a blob written by Store. Used to clean up staged bytes
// when report creation fails; best effort, deduplicated blobs are skipped by
// the caller.
func (s *AttachmentService) Discard(ctx context.Context, key string) error {
	return s.blobs.Delete(ctx, key)
}

// splitDataURL accepts either bare base64 or a data URL
// ("data:image/png;base64,...."). It returns the base64 payload and the MIME
// type from the header, if any.
func splitDataURL(encoded string) (payload, mime string, err error) {
	trimmed := strings.TrimSpace(encoded)
	if trimmed == "" {
		return "", "", fmt.Errorf("%w: empty payload", common.ErrMalformedPayload)
	}
	if !strings.HasPrefix(trimmed, "data:") {
		return trimmed, "", nil
	}

	head, rest, found := strings.Cut(trimmed, ",")
	if !found || !strings.HasSuffix(head, ";base64") {
		return "", "", fmt.Errorf("%w: unsupported data URL", common.ErrMalformedPayload)
	}
	mime = strings.TrimSuffix(strings.TrimPrefix(head, "data:"), ";base64")
	return rest, mime, nil
}
