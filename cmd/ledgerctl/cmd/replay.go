package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/saadkhan2003/masjid-ledger/internal/offline"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Apply operations waiting in the offline outbox",
	Long: `replay opens the outbox file, applies every queued operation in order
and reports what happened. A running API server holds the outbox lock, so
stop it first or use POST /api/v1/sync/replay instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		// Going online starts the replay.
		a.Relay.SetOnline(true)
		a.Relay.Wait()

		st, err := a.Relay.Status()
		if err != nil {
			return err
		}

		printReplay(cmd.OutOrStdout(), st)

		if st.LastResult != nil && st.LastResult.Failed > 0 {
			return errors.Join(st.LastResult.Errors...)
		}

		return nil
	},
}

func printReplay(w io.Writer, st offline.Status) {
	if st.LastResult == nil {
		fmt.Fprintf(w, "queued: %d, nothing replayed\n", st.Queued)
		return
	}

	res := st.LastResult
	fmt.Fprintf(w, "applied: %d, failed: %d, skipped: %d, still queued: %d\n",
		res.Applied, res.Failed, res.Skipped, st.Queued)

	for _, err := range res.Errors {
		fmt.Fprintf(w, "  %v\n", err)
	}
}
