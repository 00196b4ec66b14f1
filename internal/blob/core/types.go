// Package core defines the blob storage abstractions shared by the storage
// backends and the code that writes session artefacts through them.
package core

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver identifies a concrete blob storage backend implementation.
type Driver string

const (
	// DriverFilesystem writes artefacts under a local directory (default).
	DriverFilesystem Driver = "fs"
	// DriverS3 writes artefacts to an S3 / MinIO compatible bucket.
	DriverS3 Driver = "s3"
	// DriverMemory keeps artefacts in process memory (tests).
	DriverMemory Driver = "memory"
)

// Valid reports whether d names a known backend.
func (d Driver) Valid() bool {
	switch d {
	case DriverFilesystem, DriverS3, DriverMemory:
		return true
	}
	return false
}

// PutOptions specifies optional parameters for Put.
type PutOptions struct {
	ContentType string            // MIME type, optional
	Metadata    map[string]string // User metadata (small, flat key-value)
}

// Info describes a stored blob.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
	// Location is where a person can find the blob: a file path, s3:// URL or memory:// key.
	Location string `json:"location,omitempty"`
}

// Store is a create-only object store. Put never replaces an existing key.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

var (
	// ErrExists is returned by Put when the key is already taken.
	ErrExists = errors.New("blobstore: already exists")
	// ErrNotFound is returned when a key has no blob.
	ErrNotFound = errors.New("blobstore: not found")
)

// CloneMetadata copies a metadata map so callers cannot alias stored state.
func CloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
