package blob

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/hctorder/internal/blob/fs"
	"github.com/dyluth/hctorder/internal/config"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("filesystem", func(t *testing.T) {
		dir := t.TempDir()
		cfg := config.Default()
		cfg.Output.Dir = filepath.Join(dir, "sessions")

		store, err := Open(ctx, cfg)
		require.NoError(t, err)
		assert.Equal(t, DriverFilesystem, store.Driver())
		assert.Equal(t, cfg.Output.Dir, store.(*fs.Store).Root())
	})

	t.Run("s3", func(t *testing.T) {
		cfg := config.Default()
		cfg.Output = config.OutputConfig{Driver: "s3", S3: &config.S3Config{Bucket: "b", Endpoint: "http://localhost:9000", PathStyle: true}}

		store, err := Open(ctx, cfg)
		require.NoError(t, err)
		assert.Equal(t, DriverS3, store.Driver())
	})

	t.Run("s3 without section", func(t *testing.T) {
		cfg := config.Default()
		cfg.Output = config.OutputConfig{Driver: "s3"}
		_, err := Open(ctx, cfg)
		assert.Error(t, err)
	})

	t.Run("memory", func(t *testing.T) {
		cfg := config.Default()
		cfg.Output.Driver = "memory"
		store, err := Open(ctx, cfg)
		require.NoError(t, err)
		assert.Equal(t, DriverMemory, store.Driver())
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := config.Default()
		cfg.Output.Driver = "ftp"
		_, err := Open(ctx, cfg)
		assert.ErrorContains(t, err, "unknown blob driver ftp")
	})
}
