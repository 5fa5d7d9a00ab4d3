package config_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gourcefang/internal/config"
)

func TestValidate_ZeroConfig_NoError(t *testing.T) {
	t.Parallel()

	cfg := config.Config{}
	require.NoError(t, cfg.Validate())
}

func TestValidate_NegativeWorkers(t *testing.T) {
	t.Parallel()

	cfg := config.Config{Workers: -1}
	require.ErrorIs(t, cfg.Validate(), config.ErrInvalidWorkers)
}

func TestValidate_NegativeMaxChangesetSize(t *testing.T) {
	t.Parallel()

	cfg := config.Config{MaxChangesetSize: -5}
	require.ErrorIs(t, cfg.Validate(), config.ErrInvalidMaxChangesetSize)
}

func TestValidate_FiltersRequireRecursive(t *testing.T) {
	t.Parallel()

	cfg := config.Config{Include: []string{"svc"}}
	require.ErrorIs(t, cfg.Validate(), config.ErrFiltersRequireRecursive)

	cfg = config.Config{Exclude: []string{"svc"}}
	require.ErrorIs(t, cfg.Validate(), config.ErrFiltersRequireRecursive)

	cfg = config.Config{Include: []string{"svc"}, Recursive: true}
	require.NoError(t, cfg.Validate())
}

func TestValidate_SampleRatioRange(t *testing.T) {
	t.Parallel()

	cfg := config.Config{OTLPSampleRatio: 1.5}
	require.ErrorIs(t, cfg.Validate(), config.ErrInvalidSampleRatio)

	cfg = config.Config{OTLPSampleRatio: -0.1}
	require.ErrorIs(t, cfg.Validate(), config.ErrInvalidSampleRatio)

	cfg = config.Config{OTLPSampleRatio: 0.25}
	require.NoError(t, cfg.Validate())
}

func TestChunkSizeBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    uint64
		wantErr error
	}{
		{name: "default_when_empty", raw: "", want: 4096 << 20},
		{name: "bare_integer_is_mib", raw: "512", want: 512 << 20},
		{name: "humanized_gib", raw: "4GiB", want: 4 << 30},
		{name: "humanized_mib", raw: "128MiB", want: 128 << 20},
		{name: "floor_exactly", raw: "64", want: 64 << 20},
		{name: "below_floor", raw: "32", wantErr: config.ErrChunkSizeTooSmall},
		{name: "humanized_below_floor", raw: "32MB", wantErr: config.ErrChunkSizeTooSmall},
		{name: "garbage", raw: "lots", wantErr: config.ErrInvalidChunkSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.Config{SortChunkSize: tt.raw}

			got, err := cfg.ChunkSizeBytes()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSlogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    slog.Level
		wantErr bool
	}{
		{name: "debug", raw: "debug", want: slog.LevelDebug},
		{name: "info", raw: "info", want: slog.LevelInfo},
		{name: "empty_defaults_to_info", raw: "", want: slog.LevelInfo},
		{name: "warn", raw: "warn", want: slog.LevelWarn},
		{name: "error", raw: "error", want: slog.LevelError},
		{name: "unknown", raw: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.Config{LogLevel: tt.raw}

			got, err := cfg.SlogLevel()
			if tt.wantErr {
				require.ErrorIs(t, err, config.ErrInvalidLogLevel)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate_BadChunkSizeSurfaces(t *testing.T) {
	t.Parallel()

	cfg := config.Config{SortChunkSize: "16"}
	require.ErrorIs(t, cfg.Validate(), config.ErrChunkSizeTooSmall)
}

func TestValidate_BadLogLevelSurfaces(t *testing.T) {
	t.Parallel()

	cfg := config.Config{LogLevel: "loud"}
	require.ErrorIs(t, cfg.Validate(), config.ErrInvalidLogLevel)
}
