package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".gourcefang"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for gourcefang settings.
const envPrefix = "GOURCEFANG"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("path", "")
	viperCfg.SetDefault("recursive", false)
	viperCfg.SetDefault("include", []string{})
	viperCfg.SetDefault("exclude", []string{})
	viperCfg.SetDefault("output", "")
	viperCfg.SetDefault("aliases", []string{})
	viperCfg.SetDefault("aliases_file", "")
	viperCfg.SetDefault("use_merge_sort", false)
	viperCfg.SetDefault("sort_chunk_size", DefaultSortChunkSize)
	viperCfg.SetDefault("temp_file_location", "")
	viperCfg.SetDefault("max_changeset_size", 0)
	viperCfg.SetDefault("workers", 0)
	viperCfg.SetDefault("color_by_language", false)
	viperCfg.SetDefault("summary", false)
	viperCfg.SetDefault("log_level", DefaultLogLevel)
	viperCfg.SetDefault("log_json", false)
	viperCfg.SetDefault("metrics_listen", "")
	viperCfg.SetDefault("otlp_endpoint", "")
	viperCfg.SetDefault("otlp_headers", "")
	viperCfg.SetDefault("otlp_insecure", false)
	viperCfg.SetDefault("otlp_sample_ratio", 0.0)
}
