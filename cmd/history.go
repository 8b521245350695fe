package cmd

import (
	"github.com/spf13/cobra"

	"mirrorsync/internal/progress"
	"mirrorsync/internal/state"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent sync runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig("")
			if err != nil {
				return err
			}

			manager, err := state.NewManager(cfg.DataDir())
			if err != nil {
				return err
			}
			defer manager.Close()

			records, err := manager.History(limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				cmd.Println("No runs recorded yet.")
				return nil
			}

			for _, record := range records {
				cmd.Printf("%s  %-8s  downloaded=%d present=%d excluded=%d failed=%d  %s  (%s)\n",
					record.StartTime.Format("2006-01-02 15:04:05"),
					record.Status,
					record.Downloaded,
					record.AlreadyPresent,
					record.Excluded,
					record.Failed,
					progress.FormatBytes(record.BytesTransferred),
					record.EndTime.Sub(record.StartTime).Round(durationPrecision),
				)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	return cmd
}
