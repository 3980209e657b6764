package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func cacheCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or reset the offline cache",
	}
	cmd.AddCommand(cacheStatusCommand(a), cacheClearCommand(a))
	return cmd
}

func cacheStatusCommand(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show cached note count, outbox depth and last sync time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.openCache()
			if err != nil {
				return err
			}
			defer c.Close()

			status := c.Status()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), status)
			}

			lastSync := "never"
			if status.LastSync != nil {
				lastSync = status.LastSync.Local().Format(time.DateTime)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "cache dir:     %s\n", a.cfg.Cache.Dir)
			fmt.Fprintf(out, "cached notes:  %d (limit %d)\n", status.Notes, c.SizeLimit())
			fmt.Fprintf(out, "outbox:        %d pending, %d synced\n", status.Pending, status.Synced)
			fmt.Fprintf(out, "last sync:     %s\n", lastSync)
			fmt.Fprintf(out, "stale:         %v (max age %s)\n", status.Stale, c.MaxAge())
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print status as JSON")
	return cmd
}

func cacheClearCommand(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the note mirror, metadata mirror and outbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return errors.New("refusing to clear the cache without --force, pending outbox entries would be lost")
			}
			c, err := a.openCache()
			if err != nil {
				return err
			}
			defer c.Close()

			if pending := c.PendingCount(); pending > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: discarding %d pending outbox entries\n", pending)
			}
			if err := c.ClearAll(); err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Confirm deleting all cached data")
	return cmd
}
