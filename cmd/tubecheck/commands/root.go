package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BranchIntl/tubecheck"
	"github.com/BranchIntl/tubecheck/config"
	"github.com/BranchIntl/tubecheck/match"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// globalOptions are the flags shared by every subcommand
type globalOptions struct {
	configPath string
	strategy   string
	members    []string
	logLevel   string
	noColor    bool
}

// filterOptions are the job and tube condition flags
type filterOptions struct {
	where []string
	exprs []string
}

// NewRootCmd builds the tubecheck command tree
func NewRootCmd(version string) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "tubecheck",
		Short: "Inspect pools of work-queue servers",
		Long: `tubecheck inspects a pool of work-queue servers as if it were one
server: tubes are merged across members, and jobs are listed, matched and
deleted wherever they live.

Pools are configured in YAML (--config) and can be overridden with flags
or the TUBECHECK_STRATEGY, TUBECHECK_MEMBERS and TUBECHECK_LOG_LEVEL
environment variables.`,
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor || os.Getenv("NO_COLOR") != "" {
				color.NoColor = true
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// If no subcommand is specified, show help
			return cmd.Help()
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML configuration file")
	flags.StringVarP(&opts.strategy, "strategy", "s", "", "Strategy kind (overrides config)")
	flags.StringSliceVarP(&opts.members, "member", "m", nil, "Pool member address, repeatable (overrides config)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	root.AddCommand(
		newStrategiesCmd(),
		newTubesCmd(opts),
		newTubeCmd(opts),
		newJobsCmd(opts),
		newDeleteCmd(opts),
		newWatchCmd(opts),
	)
	return root
}

// Execute runs the root command with the process arguments. Commands
// stop when ctx is canceled.
func Execute(ctx context.Context, version string) error {
	root := NewRootCmd(version)
	if err := root.ExecuteContext(ctx); err != nil {
		return printError(root.ErrOrStderr(), err)
	}
	return nil
}

// openPool loads the configuration, applies flag overrides and opens the
// pool. Logs go to the command's error stream.
func openPool(cmd *cobra.Command, opts *globalOptions) (*tubecheck.Pool, error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, err
	}

	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	w := cmd.ErrOrStderr()
	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(w, handlerOpts)
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return tubecheck.Open(cmd.Context(), cfg, tubecheck.WithLogger(logger))
}

func loadConfig(cmd *cobra.Command, opts *globalOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("strategy") {
		cfg.Strategy = opts.strategy
	}
	if flags.Changed("member") {
		cfg.Members = opts.members
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	return cfg, cfg.Validate()
}

func (f *filterOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.where, "where", "w", nil, "Condition key=value, key=lo..hi or key=/regexp/ (repeatable)")
	cmd.Flags().StringArrayVar(&f.exprs, "expr", nil, "CEL condition key='value > 3' (repeatable)")
}

// options builds the match options from the condition flags
func (f *filterOptions) options() (match.Options, error) {
	opts, err := match.ParseOptions(f.where)
	if err != nil {
		return nil, err
	}

	for _, e := range f.exprs {
		key, expr, ok := strings.Cut(e, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid expression %q (want key=expression)", e)
		}
		pred, err := match.Expr(expr)
		if err != nil {
			return nil, err
		}
		opts[key] = pred
	}
	return opts, nil
}

func (f *filterOptions) empty() bool {
	return len(f.where) == 0 && len(f.exprs) == 0
}
