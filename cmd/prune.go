package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"mirrorsync/internal/progress"
)

func newPruneCmd() *cobra.Command {
	flags := &mirrorFlags{}
	var force bool

	cmd := &cobra.Command{
		Use:   "prune <destination>",
		Short: "Delete local files that no longer exist on the remote",
		Long: `prune deletes local files with no remote counterpart. Nothing is
deleted unless --force is given; without it the command only lists
what would be removed. The orphan set is refused outright when any
remote subtree could not be listed.`,
		Args: cobra.ExactArgs(1),
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
				cmd.Println("Nothing to prune.")
				return nil
			}

			if !force {
				for _, entry := range orphans {
					cmd.Printf("would remove  %s  (%s)\n", entry.Path, progress.FormatBytes(entry.Size))
				}
				cmd.Printf("\n%d files. Re-run with --force to delete them.\n", len(orphans))
				return nil
			}

			removed, err := svc.RemoveOrphans(orphans)
			if err != nil {
				return fmt.Errorf("prune aborted after removing %d files: %w", removed, err)
			}
			cmd.Printf("Removed %d files.\n", removed)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&force, "force", false, "actually delete the files")
	return cmd
}
