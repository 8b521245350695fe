package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"mirrorsync/internal/config"
	"mirrorsync/internal/logger"
	"mirrorsync/internal/progress"
	"mirrorsync/internal/scheduler"
	"mirrorsync/internal/service"
)

func newWatchCmd() *cobra.Command {
	flags := &mirrorFlags{}
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch <destination>",
		Short: "Sync repeatedly at a fixed interval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(args[0])
			if err != nil {
				return err
			}
			flags.apply(cfg)
			if interval > 0 {
				cfg.Watch.Interval = interval
			}

			svc, err := newWatchService(cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			log := logger.Get().With("component", "watch")

			run := func(ctx context.Context) error {
				summary, err := svc.Run(ctx)
				if err != nil {
					return err
				}
				if !summary.Ok() {
					log.Warn("run finished with problems",
						"failed", summary.Failed,
						"unreachable_subtrees", len(summary.Unreachable),
					)
				}
				return nil
			}

			ctx, cancel := signalContext()
			defer cancel()

			// One run up front, then the ticker takes over
			if err := run(ctx); err != nil {
				return err
			}

			sched, err := scheduler.NewIntervalScheduler(cfg.Watch.Interval, run)
			if err != nil {
				return err
			}
			if err := sched.Start(ctx); err != nil {
				return err
			}

			log.Info("watching", "interval", cfg.Watch.Interval)
			<-ctx.Done()

			if err := sched.Stop(); err != nil {
				log.Warn("scheduler stop", "error", err)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.refresh, "refresh", false, "re-check existing files against the remote modification time")
	cmd.Flags().DurationVar(&interval, "interval", 0, "time between runs (default from config)")
	return cmd
}

func newWatchService(cfg *config.Config) (*service.SyncService, error) {
	svc, err := service.NewSyncService(cfg)
	if err != nil {
		return nil, err
	}
	svc.SetReporter(progress.NewLogReporter(logger.Get().With("component", "transfer")))
	return svc, nil
}
