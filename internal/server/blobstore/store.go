// Package blobstore stores attachment bytes under content-addressed keys.
// Two implementations are provided: a local uploads directory and an
// S3-compatible bucket.
package blobstore

import "context"

// Store is the durable byte-storage capability used by the attachment
// handler. Keys are slash-separated paths generated by the caller; writes to
// an existing key are idempotent because keys are content-addressed.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
