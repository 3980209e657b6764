package cmd

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/weiwangfds/racenotes/internal/service/cache"
)

func outboxCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and acknowledge notes queued while offline",
		Long: "Notes created while the remote database is unreachable are kept in the outbox. " +
			"They are never replayed automatically: re-enter them once connected, then mark them synced.",
	}
	cmd.AddCommand(outboxListCommand(a), outboxMarkSyncedCommand(a), outboxClearSyncedCommand(a))
	return cmd
}

func outboxListCommand(a *app) *cobra.Command {
	var pendingOnly, asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List outbox entries in the order they were queued",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.openCache()
			if err != nil {
				return err
			}
			defer c.Close()

			entries := c.OutboxEntries()
			if pendingOnly {
				entries = c.PendingNotes()
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			return writeOutboxTable(cmd.OutOrStdout(), entries)
		},
	}

	cmd.Flags().BoolVar(&pendingOnly, "pending", false, "Only list entries not yet marked synced")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")
	return cmd
}

func outboxMarkSyncedCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mark-synced <id>...",
		Short: "Mark outbox entries as synced",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.openCache()
			if err != nil {
				return err
			}
			defer c.Close()

			var errs []error
			for _, id := range args {
				if err := c.MarkNoteSynced(id); err != nil {
					errs = append(errs, fmt.Errorf("failed to mark %s: %w", id, err))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "marked %s as synced\n", id)
			}
			return errors.Join(errs...)
		},
	}
}

func outboxClearSyncedCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-synced",
		Short: "Delete outbox entries already marked synced",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.openCache()
			if err != nil {
				return err
			}
			defer c.Close()

			removed := c.ClearSyncedNotes()
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d synced entries\n", removed)
			return nil
		},
	}
}

func writeOutboxTable(w io.Writer, entries []cache.OutboxEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "outbox is empty")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tQUEUED\tSTATUS\tTRACK\tSESSION\tMEDIA\tBODY")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			e.ID,
			e.QueuedAt.Local().Format(time.DateTime),
			e.SyncStatus,
			e.Payload.Context.TrackName,
			e.Payload.Context.SessionType,
			len(e.Payload.MediaFiles),
			truncate(e.Payload.Note.Body, 40),
		)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
