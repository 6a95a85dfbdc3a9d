package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrS3NotConfigured is returned when S3 operations are attempted
// without proper configuration.
var ErrS3NotConfigured = errors.New("S3 storage is not configured")

// LocalStorage implements the Storage interface using local disk.
// It stores files in a configurable directory and does not support S3
// operations unless wrapped with S3Storage.
type LocalStorage struct {
	dataDir string
}

// NewLocalStorage creates a new LocalStorage instance.
// The dataDir parameter specifies where files are stored.
// If dataDir is empty, a directory under os.TempDir() is used.
// The directory is created if it doesn't exist.
func NewLocalStorage(dataDir string) (*LocalStorage, error) {
	if dataDir == "" {
		dataDir = filepath.Join(os.TempDir(), "cgistudio")
	}

	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	return &LocalStorage{dataDir: dataDir}, nil
}

// DataDir returns the data directory path.
func (s *LocalStorage) DataDir() string {
	return s.dataDir
}

// Save writes data to a file and returns the file path.
// The name is used as a base for the filename with a unique suffix.
func (s *LocalStorage) Save(ctx context.Context, name string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.CreateTemp(s.dataDir, name+"_*")
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}

	fileName := f.Name()
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(fileName)
		return "", fmt.Errorf("write file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(fileName)
		return "", fmt.Errorf("close file: %w", err)
	}

	return fileName, nil
}

// Open reads a stored file and returns a reader.
// The caller is responsible for closing the returned ReadCloser.
func (s *LocalStorage) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(s.dataDir, path)
	}

	f, err := os.Open(path) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	return f, nil
}

// Remove deletes the specified files.
// It continues even if some files fail to delete,
// returning the first error encountered.
func (s *LocalStorage) Remove(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove file %s: %w", p, err)
			}
		}
	}
	return firstErr
}

// UploadToS3 is not supported by LocalStorage and returns ErrS3NotConfigured.
func (s *LocalStorage) UploadToS3(_ context.Context, _ string, _ io.Reader) (string, error) {
	return "", ErrS3NotConfigured
}
