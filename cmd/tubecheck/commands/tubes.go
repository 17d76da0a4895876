package commands

import (
	"io"
	"strings"

	"github.com/BranchIntl/tubecheck/catalog"
	"github.com/BranchIntl/tubecheck/match"
	"github.com/spf13/cobra"
)

func newTubesCmd(opts *globalOptions) *cobra.Command {
	filters := &filterOptions{}

	cmd := &cobra.Command{
		Use:   "tubes",
		Short: "List tubes across the pool",
		Long: `List every tube known to any pool member with its merged job counts.

Examples:
  # All tubes
  tubecheck tubes

  # Tubes with buried jobs
  tubecheck tubes --where current-jobs-buried=1..1000000

  # Tubes whose name starts with "mail"
  tubecheck tubes --where name=/^mail/`,
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

			ctx := cmd.Context()
			w := cmd.OutOrStdout()
			count := 0
			for tube, err := range pool.Tubes(ctx) {
				if err != nil {
					return err
				}
				ok, err := pool.TubeMatches(ctx, tube, conds)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}

				h, err := tube.ToHash(ctx)
				if err != nil {
					return err
				}
				printTube(w, tube.Name(), h)
				count++
			}
			printSummary(w, "%d tube(s)", count)
			return nil
		},
	}
	filters.register(cmd)
	return cmd
}

func newTubeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tube NAME",
		Short: "Show the merged stats of one tube",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := openPool(cmd, opts)
			if err != nil {
				return err
			}
			defer pool.Close()

			text := pool.PrettyPrintTube(cmd.Context(), pool.Tube(args[0]))
			head, rest, _ := strings.Cut(text, "\n")
			printHeader(cmd.OutOrStdout(), "%s", head)
			if rest != "" {
				printLine(cmd.OutOrStdout(), "%s", rest)
			}
			return nil
		},
	}
}

// printTube prints a tube name and its merged job counts
func printTube(w io.Writer, name string, h match.Attributes) {
	printHeader(w, "%s", name)
	printLine(w, "  ready=%v reserved=%v delayed=%v buried=%v",
		stat(h, catalog.TubeCurrentJobsReady),
		stat(h, catalog.TubeCurrentJobsReserved),
		stat(h, catalog.TubeCurrentJobsDelayed),
		stat(h, catalog.TubeCurrentJobsBuried))
}

// stat returns a merged stat, zero when no member reported it
func stat(h match.Attributes, key string) any {
	if v, ok := h[key]; ok {
		return v
	}
	return 0
}
