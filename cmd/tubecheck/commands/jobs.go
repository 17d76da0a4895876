package commands

import (
	"context"
	"io"
	"strings"

	"github.com/BranchIntl/tubecheck"
	"github.com/BranchIntl/tubecheck/core"
	"github.com/BranchIntl/tubecheck/match"
	"github.com/spf13/cobra"
)

func newJobsCmd(opts *globalOptions) *cobra.Command {
	filters := &filterOptions{}

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List jobs across the pool",
		Long: `List every job held by any pool member, optionally filtered.

Examples:
  # Buried jobs of the mailer tube
  tubecheck jobs --where tube=mailer --where state=buried

  # Jobs released more than three times
  tubecheck jobs --expr releases='value > 3'

  # Jobs whose body mentions an order
  tubecheck jobs --where body=/order/`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conds, err := filters.options()
			if err != nil {
				return err
			}

			pool, err := openPool(cmd, opts)
			if err != nil {
				return err
			}
			defer pool.Close()

			jobs, err := matchingJobs(cmd.Context(), pool, conds)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, job := range jobs {
				printJob(w, pool.PrettyPrintJob(job))
			}
			printSummary(w, "%d job(s)", len(jobs))
			return nil
		},
	}
	filters.register(cmd)
	return cmd
}

// matchingJobs collects the jobs of the pool that satisfy conds
func matchingJobs(ctx context.Context, pool *tubecheck.Pool, conds match.Options) ([]*core.Job, error) {
	var jobs []*core.Job
	for job, err := range pool.Jobs(ctx) {
		if err != nil {
			return nil, err
		}
		ok, err := pool.JobMatches(job, conds)
		if err != nil {
			return nil, err
		}
		if ok {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

func printJob(w io.Writer, text string) {
	head, rest, _ := strings.Cut(text, "\n")
	printHeader(w, "%s", head)
	if rest != "" {
		printLine(w, "%s", rest)
	}
}
