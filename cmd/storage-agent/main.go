// ABOUTME: Entry point for the storage agent daemon
// ABOUTME: Serves directory listings of the local filesystem to crawl coordinators

package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/storage-agent/internal/config"
	"github.com/2389/storage-agent/internal/lister"
	"github.com/2389/storage-agent/internal/logging"
	"github.com/2389/storage-agent/internal/server"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
     _                                                         _
 ___| |_ ___  _ __ __ _  __ _  ___        __ _  __ _  ___ _ __ | |_
/ __| __/ _ \| '__/ _' |/ _' |/ _ \_____ / _' |/ _' |/ _ \ '_ \| __|
\__ \ || (_) | | | (_| | (_| |  __/_____| (_| | (_| |  __/ | | | |_
|___/\__\___/|_|  \__,_|\__, |\___|      \__,_|\__, |\___|_| |_|\__|
                        |___/                  |___/
`

type options struct {
	configPath    string
	listen        string
	port          int
	maxConns      int
	replacePath   []string
	reportSkipped bool
	verbose       int
	logFormat     string
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
		Use:   "storage-agent",
		Short: "Serve directory listings to crawl coordinators",
		Long: `storage-agent answers one listing request per TCP connection.

Requested paths are remapped with --replacepath REMOTE,LOCAL before the local
filesystem is read, so coordinators can address a share by its remote name.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "path to a YAML or TOML config file")
	f.StringVarP(&opts.listen, "listen", "l", config.DefaultListen, "address to listen on")
	f.IntVarP(&opts.port, "port", "p", config.DefaultPort, "port to listen on")
	f.IntVarP(&opts.maxConns, "maxconnections", "c", config.DefaultMaxConnections, "maximum concurrent connections")
	f.StringSliceVarP(&opts.replacePath, "replacepath", "r", nil, "remote and local path prefixes, as REMOTE,LOCAL")
	f.BoolVar(&opts.reportSkipped, "report-skipped", false, "report entries that are neither files nor directories")
	f.CountVarP(&opts.verbose, "verbose", "v", "increase verbosity (-vv for debug)")
	f.StringVar(&opts.logFormat, "log-format", "", "log format: text or json")

	return cmd
}

// resolve merges the config file, if any, with explicitly set flags.
func resolve(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	f := cmd.Flags()
	if f.Changed("listen") {
		cfg.Server.Listen = opts.listen
	}
	if f.Changed("port") {
		cfg.Server.Port = opts.port
	}
	if f.Changed("maxconnections") {
		cfg.Server.MaxConnections = opts.maxConns
		if cfg.Server.Backlog < opts.maxConns {
			cfg.Server.Backlog = opts.maxConns
		}
	}
	if f.Changed("replacepath") {
		if len(opts.replacePath) != 2 {
			return nil, fmt.Errorf("--replacepath takes exactly two values, REMOTE,LOCAL")
		}
		cfg.Server.ReplacePath.Remote = opts.replacePath[0]
		cfg.Server.ReplacePath.Local = opts.replacePath[1]
	}
	if f.Changed("report-skipped") {
		cfg.Server.ReportSkipped = opts.reportSkipped
	}
	if f.Changed("verbose") && opts.verbose >= 2 {
		cfg.Logging.Level = "debug"
	}
	if f.Changed("log-format") {
		cfg.Logging.Format = opts.logFormat
	}

	if err := cfg.Server.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Logging.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(cmd *cobra.Command, opts *options) error {
	cfg, err := resolve(cmd, opts)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)
	cyan.Print(banner)
	gray.Printf("    version: %s\n\n", version)

	logger := logging.New(logging.Options{
		Level:  logging.ParseLevel(cfg.Logging.Level),
		Format: cfg.Logging.Format,
	})

	addr := net.JoinHostPort(cfg.Server.Listen, strconv.Itoa(cfg.Server.Port))
	srv, err := server.New(server.Config{
		Addr:           addr,
		MaxConnections: cfg.Server.MaxConnections,
		Backlog:        cfg.Server.Backlog,
		RemotePrefix:   cfg.Server.ReplacePath.Remote,
		LocalPrefix:    cfg.Server.ReplacePath.Local,
		ReportSkipped:  cfg.Server.ReportSkipped,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
	}, lister.NewOS(), logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	green.Print("    ▶ ")
	fmt.Printf("Remap:     %s -> %s\n", cfg.Server.ReplacePath.Remote, cfg.Server.ReplacePath.Local)
	green.Print("    ▶ ")
	fmt.Printf("Workers:   %d\n\n", cfg.Server.MaxConnections)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info(fmt.Sprintf("Listening on http://%s (ctrl-c to shutdown)", addr))
	if err := srv.ListenAndServe(ctx); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
