// ABOUTME: Storage agent over a synthetic in-memory tree, for E2E and benchmark crawls.
// ABOUTME: Usage: fake-agent [-p 9999] [--root /data] [--depth 3] [--fanout 4] [--files 8]
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/2389/storage-agent/internal/lister"
	"github.com/2389/storage-agent/internal/logging"
	"github.com/2389/storage-agent/internal/server"
)

func main() {
	var (
		listen   string
		port     int
		maxConns int
		root     string
		depth    int
		fanout   int
		files    int
		verbose  int
	)

	cmd := &cobra.Command{
		Use:           "fake-agent",
		Short:         "Serve listings of a generated in-memory tree",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := logging.New(logging.Options{Level: logging.LevelFromVerbosity(verbose)})

			l := lister.NewMemory()
			dirs, err := lister.Synthesize(l.Filesystem(), root, depth, fanout, files)
			if err != nil {
				return fmt.Errorf("building tree: %w", err)
			}
			fmt.Fprintf(os.Stderr, "serving %d directories under %s\n", dirs, root)

			srv, err := server.New(server.Config{
				Addr:           net.JoinHostPort(listen, strconv.Itoa(port)),
				MaxConnections: maxConns,
				RemotePrefix:   "/",
				LocalPrefix:    "/",
			}, l, logger)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return srv.ListenAndServe(ctx)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&listen, "listen", "l", "127.0.0.1", "address to listen on")
	f.IntVarP(&port, "port", "p", 9999, "port to listen on")
	f.IntVarP(&maxConns, "maxconnections", "c", 16, "maximum concurrent connections")
	f.StringVar(&root, "root", "/data", "root of the generated tree")
	f.IntVar(&depth, "depth", 3, "tree depth below root")
	f.IntVar(&fanout, "fanout", 4, "subdirectories per directory")
	f.IntVar(&files, "files", 8, "files per directory")
	f.CountVarP(&verbose, "verbose", "v", "increase verbosity (-vv for debug)")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
