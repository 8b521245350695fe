// Package cmd implements the mirrorsync command-line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mirrorsync/internal/config"
	"mirrorsync/internal/logger"
)

var (
	flagConfig    string
	flagBaseURL   string
	flagLogLevel  string
	flagLogFormat string
	flagLogFile   string
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mirrorsync",
		Short: "Mirror an HTTP-served directory tree to a local filesystem",
		Long: `mirrorsync keeps a local directory synchronized with a remote
HTTP archive, discovering the remote tree from its directory listing
pages and downloading whatever is missing locally. Subtrees and files
can be excluded with glob patterns.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "archive root URL")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "also log to this file (rotated)")

	rootCmd.AddCommand(
		newSyncCmd(),
		newPlanCmd(),
		newOrphansCmd(),
		newPruneCmd(),
		newHistoryCmd(),
		newWatchCmd(),
		newUnlockCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

// Execute runs the CLI and returns the process exit code
func Execute() int {
	defer logger.Shutdown()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// loadConfig merges the config file with global flag overrides and
// initializes logging
func loadConfig(destination string) (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	if destination != "" {
		cfg.Destination = destination
	}
	if flagBaseURL != "" {
		cfg.BaseURL = flagBaseURL
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	if flagLogFormat != "" {
		cfg.Log.Format = flagLogFormat
	}
	if flagLogFile != "" {
		cfg.Log.File = flagLogFile
	}

	if err := initLogger(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func initLogger(cfg *config.Config) error {
	return logger.Init(logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: logger.ParseFormat(cfg.Log.Format),
		File: logger.FileConfig{
			Enabled:    cfg.Log.File != "",
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			MaxBackups: cfg.Log.MaxBackups,
			Compress:   cfg.Log.Compress,
		},
	})
}
