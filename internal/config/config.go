// Package config provides viper-backed configuration for gourcefang.
// Settings come from a config file, GOURCEFANG_* environment variables,
// and built-in defaults; explicitly set command-line flags override all
// of them at the command layer.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/dustin/go-humanize"
)

// Default configuration values.
const (
	// DefaultSortChunkSize is the spill chunk size hint.
	DefaultSortChunkSize = "4096MiB"

	// DefaultLogLevel is the minimum log severity.
	DefaultLogLevel = "info"
)

// MinChunkSizeBytes is the smallest accepted chunk size hint (64 MiB).
// Smaller chunks make the merge fan-in explode on large histories.
const MinChunkSizeBytes = 64 << 20

// Sentinel errors for configuration validation.
var (
	// ErrChunkSizeTooSmall indicates the chunk size hint is below the 64 MiB floor.
	ErrChunkSizeTooSmall = errors.New("sort chunk size must be at least 64 MiB")
	// ErrInvalidChunkSize indicates the chunk size cannot be parsed.
	ErrInvalidChunkSize = errors.New("sort chunk size is not a valid size")
	// ErrInvalidWorkers indicates the workers value is negative.
	ErrInvalidWorkers = errors.New("workers must be non-negative")
	// ErrInvalidMaxChangesetSize indicates the changeset limit is negative.
	ErrInvalidMaxChangesetSize = errors.New("max changeset size must be non-negative")
	// ErrInvalidLogLevel indicates an unknown log level name.
	ErrInvalidLogLevel = errors.New("log level must be one of debug, info, warn, error")
	// ErrFiltersRequireRecursive indicates include/exclude without recursive scanning.
	ErrFiltersRequireRecursive = errors.New("include/exclude filters require recursive scanning")
	// ErrInvalidSampleRatio indicates the trace sample ratio is out of range.
	ErrInvalidSampleRatio = errors.New("otlp sample ratio must be between 0 and 1")
)

// Config is the top-level configuration struct for gourcefang.
// Keys mirror the command-line flags in snake_case. The yaml tags feed
// the effective-configuration dump of the config subcommand.
type Config struct {
	Path             string   `mapstructure:"path"               yaml:"path"`
	Recursive        bool     `mapstructure:"recursive"          yaml:"recursive"`
	Include          []string `mapstructure:"include"            yaml:"include"`
	Exclude          []string `mapstructure:"exclude"            yaml:"exclude"`
	Output           string   `mapstructure:"output"             yaml:"output"`
	Aliases          []string `mapstructure:"aliases"            yaml:"aliases"`
	AliasesFile      string   `mapstructure:"aliases_file"       yaml:"aliases_file"`
	UseMergeSort     bool     `mapstructure:"use_merge_sort"     yaml:"use_merge_sort"`
	SortChunkSize    string   `mapstructure:"sort_chunk_size"    yaml:"sort_chunk_size"`
	TempFileLocation string   `mapstructure:"temp_file_location" yaml:"temp_file_location"`
	MaxChangesetSize int      `mapstructure:"max_changeset_size" yaml:"max_changeset_size"`
	Workers          int      `mapstructure:"workers"            yaml:"workers"`
	ColorByLanguage  bool     `mapstructure:"color_by_language"  yaml:"color_by_language"`
	Summary          bool     `mapstructure:"summary"            yaml:"summary"`
	LogLevel         string   `mapstructure:"log_level"          yaml:"log_level"`
	LogJSON          bool     `mapstructure:"log_json"           yaml:"log_json"`
	MetricsListen    string   `mapstructure:"metrics_listen"     yaml:"metrics_listen"`
	OTLPEndpoint     string   `mapstructure:"otlp_endpoint"      yaml:"otlp_endpoint"`
	OTLPHeaders      string   `mapstructure:"otlp_headers"       yaml:"otlp_headers"`
	OTLPInsecure     bool     `mapstructure:"otlp_insecure"      yaml:"otlp_insecure"`
	OTLPSampleRatio  float64  `mapstructure:"otlp_sample_ratio"  yaml:"otlp_sample_ratio"`
}

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return ErrInvalidWorkers
	}

	if c.MaxChangesetSize < 0 {
		return ErrInvalidMaxChangesetSize
	}

	if (len(c.Include) > 0 || len(c.Exclude) > 0) && !c.Recursive {
		return ErrFiltersRequireRecursive
	}

	if c.OTLPSampleRatio < 0 || c.OTLPSampleRatio > 1 {
		return ErrInvalidSampleRatio
	}

	_, chunkErr := c.ChunkSizeBytes()
	if chunkErr != nil {
		return chunkErr
	}

	_, levelErr := c.SlogLevel()

	return levelErr
}

// ChunkSizeBytes resolves the chunk size hint to bytes. A bare integer is
// taken as MiB, matching the --sort-chunk-size flag; anything else is parsed
// as a humanized size ("4GiB", "512MiB").
func (c *Config) ChunkSizeBytes() (uint64, error) {
	raw := c.SortChunkSize
	if raw == "" {
		raw = DefaultSortChunkSize
	}

	var bytes uint64

	if mb, intErr := strconv.ParseUint(raw, 10, 64); intErr == nil {
		bytes = mb << 20
	} else {
		parsed, parseErr := humanize.ParseBytes(raw)
		if parseErr != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidChunkSize, raw)
		}

		bytes = parsed
	}

	if bytes < MinChunkSizeBytes {
		return 0, fmt.Errorf("%w: got %s", ErrChunkSizeTooSmall, humanize.IBytes(bytes))
	}

	return bytes, nil
}

// SlogLevel maps the configured log level name to a slog level.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}
}
