package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when a stored object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// BlobStore persists uploaded PDFs and exported article bundles. Keys are
// slash-separated paths relative to the store's root.
type BlobStore interface {
	// Save writes the object at key, replacing any previous content.
	Save(ctx context.Context, key string, body io.Reader, contentType string) error

	// Open returns the object's content. Caller must Close it.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether an object is stored at key.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the object at key; deleting an absent key is an error.
	Delete(ctx context.Context, key string) error
}

// Config selects and parameterizes a blob store backend.
type Config struct {
	// Bucket enables the S3 backend when non-empty.
	Bucket string
	// Prefix is prepended to every key, e.g. "healthbrief/".
	Prefix string
	// Region for S3 requests. Empty falls back to the AWS config chain.
	Region string
	// LocalDir is the filesystem root used when Bucket is empty.
	LocalDir string
}

// New picks the backend from config: S3 when a bucket is set, otherwise
// the local filesystem store.
func New(ctx context.Context, cfg Config) (BlobStore, error) {
	if cfg.Bucket != "" {
		return NewS3Store(ctx, cfg)
	}
	return NewLocalStore(cfg.LocalDir)
}
