// Package storage provides file persistence for the conversion output tree.
// It defines the Storage interface and implementations for local disk and
// local disk plus S3 publishing.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for writing, reading, removing and
// publishing output files.
type Storage interface {
	// SaveFile atomically writes data to path, creating parent directories.
	// Readers never observe a partially written file.
	SaveFile(ctx context.Context, path string, data io.Reader) error

	// LoadFile opens path for reading.
	// The caller is responsible for closing the returned ReadCloser.
	LoadFile(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes transient files such as the whole-book
	// intermediate. Missing files are ignored and cleanup continues past
	// failures, returning the first error.
	CleanupTemp(ctx context.Context, paths []string) error

	// UploadToS3 uploads data under key and returns the object URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}
