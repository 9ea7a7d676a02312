// ABOUTME: Entry point for the crawl coordinator
// ABOUTME: Walks a remote directory tree across one or more storage agents

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/storage-agent/internal/agent"
	"github.com/2389/storage-agent/internal/config"
	"github.com/2389/storage-agent/internal/logging"
	"github.com/2389/storage-agent/internal/walk"
)

// Version is set by goreleaser at build time.
var version = "dev"

var errIncomplete = errors.New("traversal incomplete")

type options struct {
	configPath string
	agents     []string
	port       int
	workers    int
	strategy   string
	timeout    time.Duration
	dedupe     bool
	sequential bool
	quiet      bool
	verbose    int
	logFormat  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "crawl [flags] ROOT",
		Short: "Walk a remote directory tree through storage agents",
		Long: `crawl lists ROOT and every directory below it by asking storage agents,
one directory level per request, with a fixed number of parallel workers.

Each request goes to an agent chosen by --strategy. A directory that cannot be
listed is reported and its subtree is skipped.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "path to a YAML or TOML config file")
	f.StringSliceVarP(&opts.agents, "agent", "a", nil, "agent host (repeatable or comma separated)")
	f.IntVarP(&opts.port, "port", "p", config.DefaultPort, "agent port")
	f.IntVarP(&opts.workers, "workers", "w", config.DefaultWorkers, "parallel workers")
	f.StringVar(&opts.strategy, "strategy", config.DefaultStrategy, "host selection: random or round_robin")
	f.DurationVar(&opts.timeout, "timeout", 0, "per-request timeout (0 for none)")
	f.BoolVar(&opts.dedupe, "dedupe", false, "skip directories already enqueued")
	f.BoolVar(&opts.sequential, "sequential", false, "walk depth-first with a single connection")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "print only the summary")
	f.CountVarP(&opts.verbose, "verbose", "v", "increase verbosity (-vv for debug)")
	f.StringVar(&opts.logFormat, "log-format", "", "log format: text or json")

	return cmd
}

// resolve merges the config file, if any, with explicitly set flags and the
// ROOT argument.
func resolve(cmd *cobra.Command, opts *options, args []string) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	f := cmd.Flags()
	if f.Changed("agent") {
		cfg.Crawl.Agents = opts.agents
	}
	if f.Changed("port") {
		cfg.Crawl.Port = opts.port
	}
	if f.Changed("workers") {
		cfg.Crawl.Workers = opts.workers
	}
	if f.Changed("strategy") {
		cfg.Crawl.Strategy = opts.strategy
	}
	if f.Changed("timeout") {
		cfg.Crawl.RequestTimeout = opts.timeout
	}
	if f.Changed("dedupe") {
		cfg.Crawl.Dedupe = opts.dedupe
	}
	if f.Changed("verbose") && opts.verbose >= 2 {
		cfg.Logging.Level = "debug"
	}
	if f.Changed("log-format") {
		cfg.Logging.Format = opts.logFormat
	}
	if len(args) == 1 {
		cfg.Crawl.Root = args[0]
	}

	if err := cfg.Crawl.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Logging.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(cmd *cobra.Command, opts *options, args []string) error {
	cfg, err := resolve(cmd, opts, args)
	if err != nil {
		return err
	}

	logger := logging.New(logging.Options{
		Level:  logging.ParseLevel(cfg.Logging.Level),
		Format: cfg.Logging.Format,
	})

	addrs := agent.Addresses(cfg.Crawl.Agents, cfg.Crawl.Port)
	newClient := func() (walk.Lister, error) {
		selector, err := agent.NewSelector(cfg.Crawl.Strategy)
		if err != nil {
			return nil, err
		}
		return agent.NewClient(agent.ClientParams{
			Addresses: addrs,
			Selector:  selector,
			Timeout:   cfg.Crawl.RequestTimeout,
			Logger:    logger,
		}), nil
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	out := newPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), opts.quiet)

	var st walk.Stats
	if opts.sequential {
		st, err = crawlSequential(ctx, newClient, cfg.Crawl.Root, logger, out)
	} else {
		st, err = crawlParallel(ctx, newClient, cfg, logger, out)
	}
	if err != nil {
		return err
	}

	workers := cfg.Crawl.Workers
	if opts.sequential {
		workers = 1
	}
	out.summary(st, len(addrs), workers)

	if !st.Complete() {
		color.New(color.FgYellow).Fprintf(cmd.ErrOrStderr(),
			"warning: listing is partial: %d failed, %d skipped, aborted=%t\n",
			st.Failed, st.Skipped, st.Aborted)
		return errIncomplete
	}
	return nil
}
