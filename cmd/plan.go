package cmd

import (
	"github.com/spf13/cobra"

	"mirrorsync/internal/progress"
)

func newPlanCmd() *cobra.Command {
	flags := &mirrorFlags{}

	cmd := &cobra.Command{
		Use:   "plan <destination>",
		Short: "Show what a sync would download, without transferring anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := flags.newService(args[0])
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, cancel := signalContext()
			defer cancel()

			plan, err := svc.Plan(ctx)
			if err != nil {
				return err
			}

			var total int64
			for _, action := range plan.Downloads {
				if action.ExpectedSize >= 0 {
					cmd.Printf("download  %s  (%s)\n", action.Path, progress.FormatBytes(action.ExpectedSize))
					total += action.ExpectedSize
				} else {
					cmd.Printf("download  %s\n", action.Path)
				}
			}
			for _, sub := range plan.Unreachable {
				cmd.Printf("unreachable  %s/  (%v)\n", sub.Path, sub.Err)
			}

			cmd.Printf("\n%d to download (at least %s), %d already present, %d excluded, %d orphans\n",
				len(plan.Downloads), progress.FormatBytes(total),
				plan.AlreadyPresent, plan.Excluded, len(plan.Orphans))
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
