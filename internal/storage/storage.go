// Package storage abstracts the object store holding reference and
// generated images. Records elsewhere in the system hold opaque storage
// IDs; display URLs are time-limited and must be re-resolved at read time.
package storage

import "context"

// UploadTarget is a presigned destination for a direct client upload.
// The client PUTs the file to URL and then refers to it by StorageID.
type UploadTarget struct {
	URL       string `json:"url"`
	StorageID string `json:"storageId"`
}

// ObjectStore is the boundary consumed by services.
type ObjectStore interface {
	// GenerateUploadURL returns a short-lived presigned upload target for
	// a new object.
	GenerateUploadURL(ctx context.Context, contentType string) (*UploadTarget, error)

	// GetURL resolves a storage ID to a time-limited display URL. Never
	// cache the result — it expires.
	GetURL(ctx context.Context, storageID string) (string, error)

	// Store writes a blob server-side and returns its storage ID. Used for
	// generated images, which arrive as bytes from the provider.
	Store(ctx context.Context, data []byte, contentType string) (string, error)

	// Delete removes an object. Callers doing cascade cleanup treat
	// failures as best-effort.
	Delete(ctx context.Context, storageID string) error
}
