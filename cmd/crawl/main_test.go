// ABOUTME: End-to-end tests for the crawl command against in-process agents.
// ABOUTME: Runs the cobra command with real flags and checks its output.

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/storage-agent/internal/lister"
	"github.com/2389/storage-agent/internal/server"
)

// startAgent serves a small tree and returns its port.
func startAgent(t *testing.T) int {
	t.Helper()
	l := lister.NewMemory()
	require.NoError(t, lister.Build(l.Filesystem(), "/data/a/", "/data/a/x.txt", "/data/b/", "/data/top.txt"))

	srv, err := server.New(server.Config{MaxConnections: 2, RemotePrefix: "/", LocalPrefix: "/"},
		l, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ln.Addr().(*net.TCPAddr).Port
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(append(args, "--log-format", "json"))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCrawl_Parallel(t *testing.T) {
	port := startAgent(t)

	stdout, stderr, err := execute(t, "--agent", "127.0.0.1", "--port", strconv.Itoa(port), "-w", "3", "/data")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	assert.ElementsMatch(t, []string{"/data/", "/data/top.txt", "/data/a/", "/data/a/x.txt", "/data/b/"}, lines)
	assert.Contains(t, stderr, "3 directories, 2 files")
	assert.Contains(t, stderr, "with 3 workers")
}

func TestCrawl_Sequential(t *testing.T) {
	port := startAgent(t)

	stdout, _, err := execute(t, "-a", "127.0.0.1", "-p", strconv.Itoa(port), "--sequential", "/data")
	require.NoError(t, err)
	assert.Equal(t, "/data/\n/data/top.txt\n/data/a/\n/data/a/x.txt\n/data/b/\n", stdout)
}

func TestCrawl_MissingRootIsPartial(t *testing.T) {
	port := startAgent(t)

	stdout, stderr, err := execute(t, "-a", "127.0.0.1", "-p", strconv.Itoa(port), "-q", "/nope")
	require.ErrorIs(t, err, errIncomplete)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "/nope")
	assert.Contains(t, stderr, "listing is partial")
}

func TestCrawl_RequiresAgents(t *testing.T) {
	_, _, err := execute(t, "/data")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crawl.agents")
}
