package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BranchIntl/tubecheck/core"
	"github.com/spf13/cobra"
)

func newWatchCmd(opts *globalOptions) *cobra.Command {
	filters := &filterOptions{}
	var interval time.Duration
	var count int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll tube counts across the pool",
		Long: `Print the merged job counts of every matching tube at a fixed interval
until interrupted or until --count polls have been printed.

Examples:
  # Watch the mailer tube every five seconds
  tubecheck watch --where tube=mailer --interval 5s

  # Take three samples of tubes with buried jobs
  tubecheck watch --where current-jobs-buried=1..1000000 --count 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return fmt.Errorf("interval must be positive, got %s", interval)
			}
			conds, err := filters.options()
			if err != nil {
				return err
			}

			pool, err := openPool(cmd, opts)
			if err != nil {
				return err
			}
			defer pool.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			// Unknown keys fail here instead of being retried forever
			watcher := core.NewWatcher(pool, interval, slog.Default())
			watcher.SetFilter(conds)
			if _, err := watcher.Poll(ctx); err != nil {
				return err
			}

			snapshots := make(chan core.Snapshot)
			go watcher.Start(ctx, snapshots)

			w := cmd.OutOrStdout()
			polls := 0
			for snap := range snapshots {
				if count > 0 && polls >= count {
					continue // draining after cancel
				}
				printSummary(w, "%s", snap.At.Format(time.RFC3339))
				for _, tube := range snap.Tubes {
					printTube(w, tube.Name, tube.Stats)
				}
				polls++
				if count > 0 && polls >= count {
					cancel()
				}
			}
			return nil
		},
	}
	filters.register(cmd)
	cmd.Flags().DurationVarP(&interval, "interval", "i", 2*time.Second, "Time between polls")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Stop after this many polls (0 = until interrupted)")
	return cmd
}
