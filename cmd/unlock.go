package cmd

import (
	"github.com/spf13/cobra"

	"mirrorsync/internal/config"
	"mirrorsync/internal/lock"
)

func newUnlockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unlock <destination>",
		Short: "Forcibly release a stale destination lock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileLock, err := lock.New(config.ExpandPath(args[0]))
			if err != nil {
				return err
			}

			if holder, err := fileLock.Holder(); err == nil && holder != nil {
				cmd.Printf("Lock held by pid %d on %s since %s\n",
					holder.PID, holder.Hostname, holder.StartTime.Format("2006-01-02 15:04:05"))
			}

			if err := fileLock.ForceRelease(); err != nil {
				return err
			}
			cmd.Println("Lock released.")
			return nil
		},
	}
	return cmd
}
