package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"mirrorsync/internal/domain"
)

// DefaultConfigPaths returns the default paths to search for config files
func DefaultConfigPaths() []string {
	paths := []string{
		".",
	}

	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "mirrorsync"))
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".config", "mirrorsync"))
	}

	return paths
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "https://myrient.erista.me/files")
	v.SetDefault("walker.concurrency", 4)
	v.SetDefault("walker.buffer", 256)
	v.SetDefault("walker.retries", 3)
	v.SetDefault("transfer.workers", 4)
	v.SetDefault("transfer.retries", 3)
	v.SetDefault("transfer.retry_initial", 500*time.Millisecond)
	v.SetDefault("transfer.retry_max", 30*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("state.enabled", true)
	v.SetDefault("watch.interval", time.Hour)
}

// Load reads and parses a configuration file. If path is empty the
// default locations are searched; a missing file yields the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("MIRRORSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("mirrorsync")
		v.SetConfigType("yaml")
		for _, p := range DefaultConfigPaths() {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		switch {
		case notFound && path == "":
			// No config file anywhere: run on defaults and flags
		case notFound || os.IsNotExist(err):
			return nil, domain.ErrConfigNotFound
		default:
			return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}

	return &cfg, nil
}

// LoadFromString parses configuration from a YAML string
func LoadFromString(yamlContent string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")

	if err := v.ReadConfig(strings.NewReader(yamlContent)); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}

	return &cfg, nil
}
