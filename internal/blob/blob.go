// Package blob re-exports the core blob abstractions and opens the backend
// selected by configuration.
package blob

import (
	"context"
	"fmt"

	"github.com/dyluth/hctorder/internal/blob/core"
	"github.com/dyluth/hctorder/internal/blob/fs"
	"github.com/dyluth/hctorder/internal/blob/memory"
	"github.com/dyluth/hctorder/internal/blob/s3"
	"github.com/dyluth/hctorder/internal/config"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory test driver.
	DriverMemory = core.DriverMemory
)

var (
	// ErrExists is returned when writing a key that is already taken.
	ErrExists = core.ErrExists
	// ErrNotFound is returned for a missing key.
	ErrNotFound = core.ErrNotFound
)

// Open selects a Store for cfg.Output. Relative directories are resolved
// against the configuration file.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	out := cfg.Output
	switch Driver(out.Driver) {
	case DriverFilesystem, "":
		return fs.New(cfg.Resolve(out.Dir))
	case DriverS3:
		if out.S3 == nil {
			return nil, fmt.Errorf("output.s3 section required for s3 driver")
		}
		return s3.New(ctx, s3.Config{
			Bucket:    out.S3.Bucket,
			Region:    out.S3.Region,
			Endpoint:  out.S3.Endpoint,
			Prefix:    out.S3.Prefix,
			PathStyle: out.S3.PathStyle,
		})
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", out.Driver)
	}
}
