// Package storage provides the scratch space of a split run and optional
// publishing of the exported files. It defines the Storage interface (port)
// with implementations for local disk and S3.
package storage

import (
	"context"
	"path"
	"strings"
)

// Storage defines the interface for run scratch space and publishing.
type Storage interface {
	// NewWorkDir creates the scratch directory of a run and returns its path.
	NewWorkDir(ctx context.Context, runID string) (string, error)

	// CleanupWorkDir removes a directory created by NewWorkDir.
	CleanupWorkDir(ctx context.Context, dir string) error

	// RemoveFiles removes the given files.
	// It continues even if some files fail to delete.
	RemoveFiles(ctx context.Context, paths []string) error

	// Publish uploads a local file under key and returns its URL.
	// Returns ErrRemoteNotConfigured if no remote is configured.
	Publish(ctx context.Context, key, localPath string) (url string, err error)

	// RemoteEnabled reports whether Publish can succeed.
	RemoteEnabled() bool
}

// ObjectKey builds the remote key of an exported file: prefix/bookID/name.
func ObjectKey(prefix, bookID, name string) string {
	return strings.TrimPrefix(path.Join(strings.Trim(prefix, "/"), bookID, name), "/")
}
