// ABOUTME: In-memory directory tree used by the walk tests in place of real agents.
// ABOUTME: Supports injected failures, blocking paths, and in-flight tracking.

package walk

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/2389/storage-agent/internal/agent"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeTree struct {
	dirs  map[string][]string
	files map[string][]string

	// fail makes List return the error with no listing.
	fail map[string]error
	// block makes List wait for ctx to be done.
	block map[string]bool
	// hold makes List wait for the channel to close, ignoring ctx.
	hold  map[string]chan struct{}
	delay time.Duration

	inflight    atomic.Int64
	maxInflight atomic.Int64

	mu    sync.Mutex
	calls map[string]int
}

func newFakeTree() *fakeTree {
	return &fakeTree{
		dirs:  map[string][]string{},
		files: map[string][]string{},
		fail:  map[string]error{},
		block: map[string]bool{},
		hold:  map[string]chan struct{}{},
		calls: map[string]int{},
	}
}

// grow adds a uniform tree under root and returns the number of directories
// including root.
func (f *fakeTree) grow(root string, depth, fanout int) int {
	f.dirs[root] = nil
	f.files[root] = []string{"readme.txt"}
	if depth == 0 {
		return 1
	}
	n := 1
	for i := 0; i < fanout; i++ {
		name := fmt.Sprintf("d%d", i)
		f.dirs[root] = append(f.dirs[root], name)
		n += f.grow(path.Join(root, name), depth-1, fanout)
	}
	return n
}

func (f *fakeTree) List(ctx context.Context, p string) (*agent.Listing, error) {
	cur := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		prev := f.maxInflight.Load()
		if cur <= prev || f.maxInflight.CompareAndSwap(prev, cur) {
			break
		}
	}

	f.mu.Lock()
	f.calls[p]++
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", agent.ErrTransport, ctx.Err())
		}
	}
	if f.block[p] {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %w", agent.ErrTransport, ctx.Err())
	}
	if ch, ok := f.hold[p]; ok {
		<-ch
	}
	if err, ok := f.fail[p]; ok {
		return nil, err
	}

	host := agent.Address{Host: "fake", Port: 9999}
	dirs, ok := f.dirs[p]
	if !ok {
		listing := &agent.Listing{Path: p, Host: host, StatusCode: 404}
		return listing, &agent.AgentError{Host: host, Path: p, StatusCode: 404, Body: "listdir exception: " + p}
	}
	return &agent.Listing{
		Path:       p,
		Dirs:       dirs,
		Files:      f.files[p],
		Host:       host,
		StatusCode: 200,
	}, nil
}

func (f *fakeTree) callCount(p string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[p]
}

// fakeClient is one worker's handle on the tree.
type fakeClient struct {
	*fakeTree
	closes *atomic.Int32
}

func (c *fakeClient) Close() error {
	c.closes.Add(1)
	return nil
}

func clientFactory(tree *fakeTree, closes *atomic.Int32) func() (Lister, error) {
	return func() (Lister, error) {
		return &fakeClient{fakeTree: tree, closes: closes}, nil
	}
}

func sortedPaths(results []Result) []string {
	paths := make([]string, 0, len(results))
	for _, r := range results {
		paths = append(paths, r.Path)
	}
	sort.Strings(paths)
	return paths
}
