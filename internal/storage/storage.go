// Package storage provides file storage abstraction for task attachments.
//
// This package defines a Storage interface with implementations for:
// - LocalStorage: File system storage for development
// - S3Storage: Any S3-compatible object store for production
//
// The storage service handles uploading attachment files with automatic
// content type detection and size validation.
package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Storage defines the interface for file storage operations.
//
// All methods are context-aware for timeout and cancellation support.
type Storage interface {
	// Put stores data at the specified key with the given options.
	// Returns an error if the operation fails or if the key already exists
	// (unless overwrite is enabled in opts).
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get retrieves the data at the specified key.
	// Returns the data as an io.ReadCloser (caller must close), object metadata,
	// and an error. Returns ErrNotFound if the key doesn't exist.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes the object at the specified key.
	// This operation is idempotent - no error is returned if the key doesn't exist.
	Delete(ctx context.Context, key string) error

	// URL returns a URL for accessing the object at the specified key.
	// For public objects, this is a permanent URL.
	// For private objects, this is a presigned URL valid for the specified duration.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)

	// Exists checks if an object exists at the specified key.
	Exists(ctx context.Context, key string) (bool, error)
}

// PutOptions configures how an object is stored.
type PutOptions struct {
	// ContentType specifies the MIME type of the object.
	// If empty, it will be auto-detected from the file extension or content.
	ContentType string

	// MaxSize specifies the maximum allowed size in bytes.
	// If the data exceeds this size, ErrTooLarge is returned.
	// A value of 0 means no limit.
	MaxSize int64

	// Overwrite allows replacing an existing object at the same key.
	// If false and the key exists, ErrKeyExists is returned.
	Overwrite bool

	// Public determines if the object should be publicly accessible.
	// For S3, this sets the ACL to public-read.
	// For local storage, this is informational only.
	Public bool
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string    // Object key/path
	Size         int64     // Size in bytes
	ContentType  string    // MIME type
	LastModified time.Time // Last modification time
	ETag         string    // Entity tag (if available)
}

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	// BasePath is the root directory where files are stored.
	// Example: "./storage" or "/var/lib/taskline/files"
	BasePath string

	// BaseURL is the public URL prefix for accessing files.
	// Example: "http://localhost:8080/files"
	BaseURL string
}

// S3Config holds configuration for an S3-compatible object store.
type S3Config struct {
	// Endpoint is the object store endpoint URL. Leave empty for AWS S3;
	// set for S3-compatible stores (MinIO, R2, Ceph).
	Endpoint string

	// AccessKeyID is the API access key ID.
	AccessKeyID string

	// SecretAccessKey is the API secret key.
	SecretAccessKey string

	// BucketName is the name of the bucket to use.
	BucketName string

	// PublicURL is the public URL for the bucket (if served via CDN or
	// custom domain). If empty, presigned URLs are used for all access.
	PublicURL string

	// Region is the bucket region. Defaults to "us-east-1" when empty,
	// which S3-compatible stores generally accept.
	Region string
}

const (
	// ProviderLocal identifies the local filesystem storage provider.
	ProviderLocal = "local"

	// ProviderS3 identifies the S3-compatible storage provider.
	ProviderS3 = "s3"
)

// AttachmentKey generates a storage key for an uploaded task attachment.
// Format: tasks/{taskID}/attachments/{uuid}.{ext}
//
// The random element keeps uploads with the same filename from colliding.
func AttachmentKey(taskID uuid.UUID, filename string) string {
	ext := filepath.Ext(filename)
	attachmentID := uuid.New()
	return fmt.Sprintf("tasks/%s/attachments/%s%s", taskID, attachmentID, ext)
}
