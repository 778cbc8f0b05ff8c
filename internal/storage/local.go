package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/maauso/audimeta-splitter/internal/errors"
)

var (
	// ErrRemoteNotConfigured is returned when publishing is attempted
	// without a configured remote.
	ErrRemoteNotConfigured = errors.New("remote storage is not configured")
	// ErrOutsideTempDir is returned when asked to remove a directory that
	// is not inside the storage temp directory.
	ErrOutsideTempDir = errors.New("path is outside the temp directory")
)

// LocalStorage implements the Storage interface using local disk.
// It keeps run scratch directories under a configurable directory and does
// not support publishing unless wrapped with S3Storage.
type LocalStorage struct {
	tempDir string
}

// NewLocalStorage creates a new LocalStorage instance.
// The tempDir parameter specifies where run directories are created.
// If tempDir is empty, a directory under os.TempDir() is used.
// The directory is created if it doesn't exist.
func NewLocalStorage(tempDir string) (*LocalStorage, error) {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "audimeta-splitter")
	}

	abs, err := filepath.Abs(tempDir)
	if err != nil {
		return nil, apperrors.Filesystem(err, "resolve temp directory %s", tempDir)
	}

	if err := os.MkdirAll(abs, 0750); err != nil {
		return nil, apperrors.Filesystem(err, "create temp directory %s", abs)
	}

	return &LocalStorage{tempDir: abs}, nil
}

// TempDir returns the temporary directory path.
func (s *LocalStorage) TempDir() string {
	return s.tempDir
}

// NewWorkDir creates tempDir/run-<runID>.
func (s *LocalStorage) NewWorkDir(ctx context.Context, runID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled: %w", err)
	}

	dir := filepath.Join(s.tempDir, "run-"+filepath.Base(runID))
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", apperrors.Filesystem(err, "create work directory %s", dir)
	}
	return dir, nil
}

// CleanupWorkDir removes a run directory and everything in it.
// It refuses to remove anything outside the temp directory.
func (s *LocalStorage) CleanupWorkDir(_ context.Context, dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return apperrors.Filesystem(err, "resolve %s", dir)
	}

	rel, err := filepath.Rel(s.tempDir, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return apperrors.Filesystem(ErrOutsideTempDir, "refusing to remove %s", abs)
	}

	if err := os.RemoveAll(abs); err != nil {
		return apperrors.Filesystem(err, "remove work directory %s", abs)
	}
	return nil
}

// RemoveFiles removes the specified files.
// It continues even if some files fail to delete,
// returning the first error encountered.
func (s *LocalStorage) RemoveFiles(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = apperrors.Filesystem(err, "remove %s", p)
			}
		}
	}
	return firstErr
}

// Publish is not supported by LocalStorage and returns ErrRemoteNotConfigured.
func (s *LocalStorage) Publish(_ context.Context, _, _ string) (string, error) {
	return "", ErrRemoteNotConfigured
}

// RemoteEnabled returns false.
func (s *LocalStorage) RemoteEnabled() bool {
	return false
}

// Verify interface implementation at compile time.
var _ Storage = (*LocalStorage)(nil)
