package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"mirrorsync/internal/domain"
)

// Config is the complete configuration for mirrorsync
type Config struct {
	// BaseURL is the archive root to mirror
	BaseURL string `mapstructure:"base_url"`

	// Destination is the local directory receiving the mirror
	Destination string `mapstructure:"destination"`

	// Excludes are glob patterns applied to every remote path
	Excludes []string `mapstructure:"excludes"`

	// ExcludeFiles are paths to files with one pattern per line
	ExcludeFiles []string `mapstructure:"exclude_files"`

	Walker   WalkerConfig   `mapstructure:"walker"`
	Transfer TransferConfig `mapstructure:"transfer"`
	Log      LogConfig      `mapstructure:"log"`
	State    StateConfig    `mapstructure:"state"`
	Watch    WatchConfig    `mapstructure:"watch"`
}

// WalkerConfig bounds remote tree discovery
type WalkerConfig struct {
	// Concurrency is the number of simultaneous listing fetches
	Concurrency int `mapstructure:"concurrency"`

	// Buffer sizes the discovered-node queue
	Buffer int `mapstructure:"buffer"`

	// Retries bounds attempts per directory listing
	Retries int `mapstructure:"retries"`
}

// TransferConfig bounds the download pool
type TransferConfig struct {
	// Workers is the download pool size
	Workers int `mapstructure:"workers"`

	// Retries bounds download attempts per file beyond the first
	Retries int `mapstructure:"retries"`

	// RetryInitial seeds the exponential backoff
	RetryInitial time.Duration `mapstructure:"retry_initial"`

	// RetryMax caps the exponential backoff
	RetryMax time.Duration `mapstructure:"retry_max"`

	// Refresh sends conditional GETs for already-present files
	Refresh bool `mapstructure:"refresh"`
}

// LogConfig configures the logger
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// StateConfig configures run-history persistence
type StateConfig struct {
	// Enabled turns the sqlite run history on
	Enabled bool `mapstructure:"enabled"`

	// Dir holds the database; defaults to the user config dir
	Dir string `mapstructure:"dir"`
}

// WatchConfig configures the periodic sync loop
type WatchConfig struct {
	// Interval between runs in watch mode
	Interval time.Duration `mapstructure:"interval"`
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base_url cannot be empty", domain.ErrConfigInvalid)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: base_url %q must be an http(s) URL", domain.ErrConfigInvalid, c.BaseURL)
	}
	if c.Destination == "" {
		return fmt.Errorf("%w: destination cannot be empty", domain.ErrConfigInvalid)
	}
	if c.Walker.Concurrency < 1 {
		return fmt.Errorf("%w: walker.concurrency must be at least 1", domain.ErrConfigInvalid)
	}
	if c.Transfer.Workers < 1 {
		return fmt.Errorf("%w: transfer.workers must be at least 1", domain.ErrConfigInvalid)
	}
	if c.Transfer.Retries < 0 || c.Walker.Retries < 0 {
		return fmt.Errorf("%w: retries cannot be negative", domain.ErrConfigInvalid)
	}
	if c.Watch.Interval < 0 {
		return fmt.Errorf("%w: watch.interval cannot be negative", domain.ErrConfigInvalid)
	}
	return nil
}

// DataDir returns the state directory, defaulting to the user config
// directory
func (c *Config) DataDir() string {
	if c.State.Dir != "" {
		return ExpandPath(c.State.Dir)
	}
	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, "mirrorsync")
	}
	return ".mirrorsync"
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			if len(path) > 1 && (path[1] == '/' || path[1] == filepath.Separator) {
				path = filepath.Join(home, path[2:])
			} else if len(path) == 1 {
				path = home
			}
		}
	}
	path = os.ExpandEnv(path)
	return filepath.Clean(path)
}
