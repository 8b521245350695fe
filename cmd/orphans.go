package cmd

import (
	"github.com/spf13/cobra"

	"mirrorsync/internal/progress"
)

func newOrphansCmd() *cobra.Command {
	flags := &mirrorFlags{}

	cmd := &cobra.Command{
		Use:   "orphans <destination>",
		Short: "List local files that no longer exist on the remote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := flags.newService(args[0])
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, cancel := signalContext()
			defer cancel()

			orphans, err := svc.Orphans(ctx)
			if err != nil {
				return err
			}
			if len(orphans) == 0 {
				cmd.Println("No orphans found.")
				return nil
			}

			var total int64
			for _, entry := range orphans {
				cmd.Printf("%s  (%s)\n", entry.Path, progress.FormatBytes(entry.Size))
				total += entry.Size
			}
			cmd.Printf("\n%d orphans, %s total\n", len(orphans), progress.FormatBytes(total))
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
