package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gourcefang/internal/config"
)

func TestLoadConfig_EmptyFile_UsesDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	emptyPath := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(emptyPath, []byte(""), 0o600))

	cfg, err := config.LoadConfig(emptyPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Empty(t, cfg.Path)
	assert.False(t, cfg.Recursive)
	assert.False(t, cfg.UseMergeSort)
	assert.Equal(t, config.DefaultSortChunkSize, cfg.SortChunkSize)
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
	assert.Zero(t, cfg.MaxChangesetSize)
	assert.Zero(t, cfg.Workers)
	assert.Empty(t, cfg.OTLPEndpoint)

	bytes, err := cfg.ChunkSizeBytes()
	require.NoError(t, err)
	assert.Equal(t, uint64(4096<<20), bytes)
}

func TestLoadConfig_ValidFile_Unmarshals(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, ".gourcefang.yaml")
	content := `path: /srv/repos
recursive: true
include:
  - frontend
  - backend
output: combined.log
use_merge_sort: true
sort_chunk_size: "512MiB"
max_changeset_size: 200
workers: 8
color_by_language: true
log_level: debug
log_json: true
metrics_listen: "127.0.0.1:9464"
otlp_endpoint: "localhost:4317"
otlp_insecure: true
otlp_sample_ratio: 0.5
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o600))

	cfg, err := config.LoadConfig(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, "/srv/repos", cfg.Path)
	assert.True(t, cfg.Recursive)
	assert.Equal(t, []string{"frontend", "backend"}, cfg.Include)
	assert.Equal(t, "combined.log", cfg.Output)
	assert.True(t, cfg.UseMergeSort)
	assert.Equal(t, "512MiB", cfg.SortChunkSize)
	assert.Equal(t, 200, cfg.MaxChangesetSize)
	assert.Equal(t, 8, cfg.Workers)
	assert.True(t, cfg.ColorByLanguage)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.LogJSON)
	assert.Equal(t, "127.0.0.1:9464", cfg.MetricsListen)
	assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
	assert.True(t, cfg.OTLPInsecure)
	assert.InDelta(t, 0.5, cfg.OTLPSampleRatio, 0.001)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("GOURCEFANG_SORT_CHUNK_SIZE", "256MiB")
	t.Setenv("GOURCEFANG_WORKERS", "4")
	t.Setenv("GOURCEFANG_LOG_LEVEL", "warn")

	dir := t.TempDir()
	emptyPath := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(emptyPath, []byte(""), 0o600))

	cfg, err := config.LoadConfig(emptyPath)
	require.NoError(t, err)

	assert.Equal(t, "256MiB", cfg.SortChunkSize)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadConfig_InvalidYAML_ReturnsError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("workers: [not closed"), 0o600))

	_, err := config.LoadConfig(cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadConfig_InvalidValues_ReturnError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, ".gourcefang.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("sort_chunk_size: \"1MiB\"\n"), 0o600))

	_, err := config.LoadConfig(cfgPath)
	require.ErrorIs(t, err, config.ErrChunkSizeTooSmall)
}

func TestLoadConfig_MissingExplicitFile_ReturnsError(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
