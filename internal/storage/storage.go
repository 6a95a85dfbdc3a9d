// Package storage provides local and S3-backed file storage for pipeline
// inputs and generated outputs. It defines the Storage interface (port) and
// implementations for local disk and S3.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for object storage.
// Implementations keep working files on local disk and optionally support
// S3 uploads for final output delivery.
type Storage interface {
	// Save writes data to a file under the data directory and returns its
	// path. The name parameter is used as a hint for the filename.
	Save(ctx context.Context, name string, data io.Reader) (path string, err error)

	// Open reads a stored file and returns a reader.
	// The caller is responsible for closing the returned ReadCloser.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Remove deletes the specified files.
	// It continues even if some files fail to delete.
	Remove(ctx context.Context, paths []string) error

	// UploadToS3 uploads data to S3 and returns the public URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}
