package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRotatingFileLogger(t *testing.T) {
	dir := t.TempDir()
	logger, closer, err := NewRotatingFileLogger(false, RotationOptions{
		Dir:      dir,
		Filename: "client.log",
	})
	require.NoError(t, err)

	logger.Info("computation queued")
	logger.Debug("hidden at info level")
	require.NoError(t, logger.Sync())
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(filepath.Join(dir, "client.log"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "computation queued"))
	assert.False(t, strings.Contains(string(data), "hidden at info level"))
}

func TestRotationOptionsDefaults(t *testing.T) {
	opts := RotationOptions{}.withDefaults()
	assert.Equal(t, defaultLogDir, opts.Dir)
	assert.Equal(t, defaultLogFilename, opts.Filename)
	assert.Equal(t, 50, opts.MaxSize)
	assert.Equal(t, 5, opts.MaxBackups)
	assert.Equal(t, 14, opts.MaxAge)
	assert.True(t, opts.Compress)

	custom := RotationOptions{MaxSize: 10}.withDefaults()
	assert.Equal(t, 10, custom.MaxSize)
	assert.False(t, custom.Compress)
}
