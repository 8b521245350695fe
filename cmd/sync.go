package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mirrorsync/internal/config"
	"mirrorsync/internal/domain"
	"mirrorsync/internal/logger"
	"mirrorsync/internal/progress"
	"mirrorsync/internal/service"
)

// mirrorFlags are shared by every command that talks to the archive
type mirrorFlags struct {
	excludes     []string
	excludeFiles []string
	workers      int
	concurrency  int
	refresh      bool
}

func (f *mirrorFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.excludes, "exclude", "e", nil, "glob pattern to exclude (repeatable)")
	cmd.Flags().StringArrayVar(&f.excludeFiles, "exclude-file", nil, "file with exclude patterns, one per line (repeatable)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "concurrent downloads")
	cmd.Flags().IntVar(&f.concurrency, "walk-concurrency", 0, "concurrent listing fetches")
}

// apply layers the command-line flags over the loaded configuration
func (f *mirrorFlags) apply(cfg *config.Config) {
	cfg.Excludes = append(cfg.Excludes, f.excludes...)
	cfg.ExcludeFiles = append(cfg.ExcludeFiles, f.excludeFiles...)
	if f.workers > 0 {
		cfg.Transfer.Workers = f.workers
	}
	if f.concurrency > 0 {
		cfg.Walker.Concurrency = f.concurrency
	}
	if f.refresh {
		cfg.Transfer.Refresh = true
	}
}

// newService loads configuration, applies flags, and builds the service
func (f *mirrorFlags) newService(destination string) (*service.SyncService, error) {
	cfg, err := loadConfig(destination)
	if err != nil {
		return nil, err
	}
	f.apply(cfg)
	return service.NewSyncService(cfg)
}

const durationPrecision = 100 * time.Millisecond

// signalContext cancels on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newSyncCmd() *cobra.Command {
	flags := &mirrorFlags{}

	cmd := &cobra.Command{
		Use:   "sync <destination>",
		Short: "Mirror the remote archive into a local directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := flags.newService(args[0])
			if err != nil {
				return err
			}
			defer svc.Close()

			svc.SetReporter(progress.NewLogReporter(logger.Get().With("component", "transfer")))

			ctx, cancel := signalContext()
			defer cancel()

			summary, err := svc.Run(ctx)
			if err != nil {
				return err
			}

			printSummary(cmd, summary)
			if !summary.Ok() {
				return fmt.Errorf("sync finished with %d failed transfers and %d unreachable subtrees",
					summary.Failed, len(summary.Unreachable))
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.refresh, "refresh", false, "re-check existing files against the remote modification time")
	return cmd
}

func printSummary(cmd *cobra.Command, s *domain.RunSummary) {
	cmd.Printf("Downloaded:      %d (%s)\n", s.Downloaded, progress.FormatBytes(s.BytesTransferred))
	cmd.Printf("Already present: %d\n", s.AlreadyPresent)
	cmd.Printf("Excluded:        %d\n", s.Excluded)
	cmd.Printf("Failed:          %d\n", s.Failed)
	if len(s.Unreachable) > 0 {
		cmd.Printf("Unreachable subtrees:\n")
		for _, sub := range s.Unreachable {
			cmd.Printf("  %s: %v\n", sub.Path, sub.Err)
		}
	}
	if len(s.Orphans) > 0 {
		cmd.Printf("Orphans:         %d (run 'mirrorsync orphans' to list)\n", len(s.Orphans))
	}
	cmd.Printf("Duration:        %s\n", s.Duration().Round(durationPrecision))
}
