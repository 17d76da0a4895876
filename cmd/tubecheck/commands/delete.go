package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCmd(opts *globalOptions) *cobra.Command {
	filters := &filterOptions{}
	var all, dryRun bool

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete matching jobs from the members holding them",
		Long: `Delete every job that matches the given conditions. Jobs reserved by a
worker are refused by their server and reported as such.

Examples:
  # Preview which buried jobs would go
  tubecheck delete --where state=buried --dry-run

  # Drop a poisoned tube's jobs
  tubecheck delete --where tube=imports`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if filters.empty() && !all {
				return fmt.Errorf("refusing to delete every job: pass conditions or --all")
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

			ctx := cmd.Context()
			jobs, err := matchingJobs(ctx, pool, conds)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			deleted := 0
			for _, job := range jobs {
				if dryRun {
					printLine(w, "would delete %s", job.Key())
					continue
				}
				ok, err := pool.DeleteJob(ctx, job)
				if err != nil {
					return err
				}
				printOutcome(w, ok, job.Key())
				if ok {
					deleted++
				}
			}

			if dryRun {
				printSummary(w, "%d job(s) matched", len(jobs))
			} else {
				printSummary(w, "%d of %d job(s) deleted", deleted, len(jobs))
			}
			return nil
		},
	}
	filters.register(cmd)
	cmd.Flags().BoolVar(&all, "all", false, "Delete every job when no condition is given")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only list the jobs that would be deleted")
	return cmd
}
