package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/maauso/audimeta-splitter/internal/errors"
)

func TestNewLocalStorage(t *testing.T) {
	t.Run("creates directory if not exists", func(t *testing.T) {
		tempDir := filepath.Join(t.TempDir(), "splitter_test_"+randomSuffix())

		storage, err := NewLocalStorage(tempDir)
		if err != nil {
			t.Fatalf("NewLocalStorage() error = %v", err)
		}

		if storage.TempDir() != tempDir {
			t.Errorf("TempDir() = %v, want %v", storage.TempDir(), tempDir)
		}

		info, err := os.Stat(tempDir)
		if err != nil {
			t.Fatalf("directory not created: %v", err)
		}
		if !info.IsDir() {
			t.Error("expected directory, got file")
		}
	})

	t.Run("uses default directory when empty", func(t *testing.T) {
		storage, err := NewLocalStorage("")
		if err != nil {
			t.Fatalf("NewLocalStorage() error = %v", err)
		}

		expected := filepath.Join(os.TempDir(), "audimeta-splitter")
		if storage.TempDir() != expected {
			t.Errorf("TempDir() = %v, want %v", storage.TempDir(), expected)
		}
	})

	t.Run("fails when path is a file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(file, []byte("x"), 0600); err != nil {
			t.Fatal(err)
		}

		_, err := NewLocalStorage(filepath.Join(file, "sub"))
		if !errors.Is(err, apperrors.ErrFilesystem) {
			t.Errorf("expected filesystem error, got %v", err)
		}
	})
}

func TestLocalStorage_WorkDir(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	dir, err := storage.NewWorkDir(ctx, "abc123")
	if err != nil {
		t.Fatalf("NewWorkDir() error = %v", err)
	}

	if filepath.Dir(dir) != storage.TempDir() {
		t.Errorf("work dir %s is not inside %s", dir, storage.TempDir())
	}
	if filepath.Base(dir) != "run-abc123" {
		t.Errorf("work dir name = %s, want run-abc123", filepath.Base(dir))
	}

	if err := os.WriteFile(filepath.Join(dir, "combined.m4b"), []byte("data"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := storage.CleanupWorkDir(ctx, dir); err != nil {
		t.Fatalf("CleanupWorkDir() error = %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("work dir should be removed")
	}
}

func TestLocalStorage_NewWorkDir_Cancelled(t *testing.T) {
	storage := setupTestStorage(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := storage.NewWorkDir(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestLocalStorage_CleanupWorkDir_RefusesOutside(t *testing.T) {
	storage := setupTestStorage(t)
	outside := t.TempDir()
	ctx := context.Background()

	tests := []struct {
		name string
		dir  string
	}{
		{"sibling directory", outside},
		{"temp dir itself", storage.TempDir()},
		{"parent traversal", filepath.Join(storage.TempDir(), "..")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := storage.CleanupWorkDir(ctx, tt.dir)
			if !errors.Is(err, ErrOutsideTempDir) {
				t.Errorf("expected ErrOutsideTempDir, got %v", err)
			}
		})
	}

	if _, err := os.Stat(outside); err != nil {
		t.Errorf("outside directory should survive: %v", err)
	}
}

func TestLocalStorage_RemoveFiles(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()
	dir := t.TempDir()

	paths := make([]string, 3)
	for i := range paths {
		paths[i] = filepath.Join(dir, randomSuffix()+".mp3")
		if err := os.WriteFile(paths[i], []byte("x"), 0600); err != nil {
			t.Fatal(err)
		}
	}

	// Missing files are ignored.
	all := append(paths, filepath.Join(dir, "missing.mp3"))

	if err := storage.RemoveFiles(ctx, all); err != nil {
		t.Fatalf("RemoveFiles() error = %v", err)
	}

	for _, p := range paths {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("file %s should be removed", p)
		}
	}
}

func TestLocalStorage_RemoveFiles_ContinuesOnError(t *testing.T) {
	storage := setupTestStorage(t)
	dir := t.TempDir()

	// A non-empty directory cannot be removed with os.Remove.
	blocked := filepath.Join(dir, "blocked")
	if err := os.MkdirAll(filepath.Join(blocked, "child"), 0750); err != nil {
		t.Fatal(err)
	}
	removable := filepath.Join(dir, "ok.mp3")
	if err := os.WriteFile(removable, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	err := storage.RemoveFiles(context.Background(), []string{blocked, removable})
	if !errors.Is(err, apperrors.ErrFilesystem) {
		t.Errorf("expected filesystem error, got %v", err)
	}
	if _, err := os.Stat(removable); !os.IsNotExist(err) {
		t.Error("second file should still be removed")
	}
}

func TestLocalStorage_Publish(t *testing.T) {
	storage := setupTestStorage(t)

	if storage.RemoteEnabled() {
		t.Error("RemoteEnabled() should be false")
	}

	_, err := storage.Publish(context.Background(), "key", "/tmp/file.mp3")
	if !errors.Is(err, ErrRemoteNotConfigured) {
		t.Errorf("expected ErrRemoteNotConfigured, got %v", err)
	}
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		prefix, book, name string
		want               string
	}{
		{"audiobooks", "B000000001", "01 - Ch1.m4b", "audiobooks/B000000001/01 - Ch1.m4b"},
		{"/audiobooks/", "B000000001", "a.mp3", "audiobooks/B000000001/a.mp3"},
		{"", "B000000001", "a.mp3", "B000000001/a.mp3"},
		{"nested/prefix", "B1", "a.mp3", "nested/prefix/B1/a.mp3"},
	}

	for _, tt := range tests {
		if got := ObjectKey(tt.prefix, tt.book, tt.name); got != tt.want {
			t.Errorf("ObjectKey(%q, %q, %q) = %q, want %q", tt.prefix, tt.book, tt.name, got, tt.want)
		}
	}
}

func setupTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	return storage
}

func randomSuffix() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
