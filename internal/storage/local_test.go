package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLocalStorage(t *testing.T) {
	t.Run("creates directory if not exists", func(t *testing.T) {
		dataDir := filepath.Join(t.TempDir(), "nested", "data")

		store, err := NewLocalStorage(dataDir)
		if err != nil {
			t.Fatalf("NewLocalStorage() error = %v", err)
		}

		if store.DataDir() != dataDir {
			t.Errorf("DataDir() = %v, want %v", store.DataDir(), dataDir)
		}

		info, err := os.Stat(dataDir)
		if err != nil {
			t.Fatalf("directory not created: %v", err)
		}
		if !info.IsDir() {
			t.Error("expected directory, got file")
		}
	})

	t.Run("uses default directory when empty", func(t *testing.T) {
		store, err := NewLocalStorage("")
		if err != nil {
			t.Fatalf("NewLocalStorage() error = %v", err)
		}

		expected := filepath.Join(os.TempDir(), "cgistudio")
		if store.DataDir() != expected {
			t.Errorf("DataDir() = %v, want %v", store.DataDir(), expected)
		}
	})
}

func TestLocalStorage_Save(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage() error = %v", err)
	}

	t.Run("saves data to file", func(t *testing.T) {
		ctx := context.Background()

		path, err := store.Save(ctx, "composite", bytes.NewReader([]byte("image data")))
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		if !strings.Contains(path, "composite_") {
			t.Errorf("path %s should contain 'composite_'", path)
		}

		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read saved file: %v", err)
		}
		if string(content) != "image data" {
			t.Errorf("got %q, want %q", string(content), "image data")
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := store.Save(ctx, "composite", bytes.NewReader([]byte("data")))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLocalStorage_Open(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage() error = %v", err)
	}
	ctx := context.Background()

	t.Run("opens absolute path", func(t *testing.T) {
		path, err := store.Save(ctx, "input", bytes.NewReader([]byte("content")))
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		rc, err := store.Open(ctx, path)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer func() { _ = rc.Close() }()

		data, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read error = %v", err)
		}
		if string(data) != "content" {
			t.Errorf("got %q, want %q", string(data), "content")
		}
	})

	t.Run("resolves relative path under data dir", func(t *testing.T) {
		full := filepath.Join(store.DataDir(), "relative.bin")
		if err := os.WriteFile(full, []byte("relative content"), 0o644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}

		rc, err := store.Open(ctx, "relative.bin")
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer func() { _ = rc.Close() }()

		data, _ := io.ReadAll(rc)
		if string(data) != "relative content" {
			t.Errorf("got %q, want %q", string(data), "relative content")
		}
	})

	t.Run("missing file returns error", func(t *testing.T) {
		_, err := store.Open(ctx, "does-not-exist.bin")
		if err == nil {
			t.Error("expected error for missing file")
		}
	})
}

func TestLocalStorage_Remove(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage() error = %v", err)
	}
	ctx := context.Background()

	path1, _ := store.Save(ctx, "a", bytes.NewReader([]byte("1")))
	path2, _ := store.Save(ctx, "b", bytes.NewReader([]byte("2")))

	// Missing files are skipped, existing ones removed.
	err = store.Remove(ctx, []string{path1, filepath.Join(store.DataDir(), "missing"), path2})
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	if _, err := os.Stat(path1); !os.IsNotExist(err) {
		t.Error("expected path1 to be removed")
	}
	if _, err := os.Stat(path2); !os.IsNotExist(err) {
		t.Error("expected path2 to be removed")
	}
}

func TestLocalStorage_UploadToS3(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage() error = %v", err)
	}

	_, err = store.UploadToS3(context.Background(), "key", bytes.NewReader([]byte("data")))
	if !errors.Is(err, ErrS3NotConfigured) {
		t.Errorf("expected ErrS3NotConfigured, got %v", err)
	}
}
