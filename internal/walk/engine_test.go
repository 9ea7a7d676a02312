// ABOUTME: Tests for the parallel walk engine against the in-memory tree and real agents.
// ABOUTME: Covers completeness, termination, failure handling, concurrency bounds, and abort.

package walk

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/storage-agent/internal/agent"
	"github.com/2389/storage-agent/internal/lister"
	"github.com/2389/storage-agent/internal/server"
)

func newTestEngine(t *testing.T, tree *fakeTree, workers int, closes *atomic.Int32) *Engine {
	t.Helper()
	if closes == nil {
		closes = &atomic.Int32{}
	}
	e, err := NewEngine(Options{
		Workers:   workers,
		NewClient: clientFactory(tree, closes),
		Logger:    testLogger(),
	})
	require.NoError(t, err)
	return e
}

// drain collects every Result from tr.
func drain(t *testing.T, tr *Traversal) []Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var results []Result
	for res := range tr.All(ctx) {
		results = append(results, res)
	}
	require.NoError(t, ctx.Err(), "traversal did not finish")
	return results
}

func sequentialPaths(t *testing.T, l Lister, root string) []string {
	t.Helper()
	var results []Result
	for res := range NewSequential(l, testLogger()).Walk(context.Background(), root) {
		results = append(results, res)
	}
	return sortedPaths(results)
}

func TestEngine_VisitsEveryDirectoryOnce(t *testing.T) {
	tree := newFakeTree()
	n := tree.grow("/r", 3, 3)

	tr, err := newTestEngine(t, tree, 4, nil).Walk(context.Background(), "/r")
	require.NoError(t, err)
	results := drain(t, tr)

	assert.Len(t, results, n)
	if diff := cmp.Diff(sequentialPaths(t, tree, "/r"), sortedPaths(results)); diff != "" {
		t.Errorf("parallel walk differs from sequential (-want +got):\n%s", diff)
	}
	for _, r := range results {
		assert.NoError(t, r.Err, r.Path)
		assert.Equal(t, []string{"readme.txt"}, r.Files, r.Path)
	}

	st := tr.Stats()
	assert.Equal(t, n, st.Listed)
	assert.True(t, st.Finished)
	assert.True(t, st.Complete())
	assert.Equal(t, int64(0), tr.Pending())
}

func TestEngine_PendingReachesZeroOnce(t *testing.T) {
	tree := newFakeTree()
	tree.grow("/r", 2, 4)

	var (
		mu     sync.Mutex
		values []int64
	)
	e := newTestEngine(t, tree, 3, nil)
	e.observe = func(p int64) {
		mu.Lock()
		values = append(values, p)
		mu.Unlock()
	}

	tr, err := e.Walk(context.Background(), "/r")
	require.NoError(t, err)
	drain(t, tr)

	mu.Lock()
	defer mu.Unlock()
	zeros := 0
	for _, v := range values {
		assert.GreaterOrEqual(t, v, int64(0))
		if v == 0 {
			zeros++
		}
	}
	assert.Equal(t, 1, zeros)
	assert.Equal(t, int64(0), values[len(values)-1])
}

func TestEngine_SingleWorkerMatchesSequential(t *testing.T) {
	tree := newFakeTree()
	tree.grow("/r", 3, 2)

	tr, err := newTestEngine(t, tree, 1, nil).Walk(context.Background(), "/r/")
	require.NoError(t, err)
	results := drain(t, tr)

	if diff := cmp.Diff(sequentialPaths(t, tree, "/r"), sortedPaths(results)); diff != "" {
		t.Errorf("single worker walk differs from sequential (-want +got):\n%s", diff)
	}
}

func TestEngine_NotFoundYieldsNoChildren(t *testing.T) {
	tree := newFakeTree()
	tree.grow("/r", 1, 2)
	tree.dirs["/r"] = append(tree.dirs["/r"], "gone")

	tr, err := newTestEngine(t, tree, 2, nil).Walk(context.Background(), "/r")
	require.NoError(t, err)
	results := drain(t, tr)

	require.Len(t, results, 4)
	var gone *Result
	for i := range results {
		if results[i].Path == "/r/gone" {
			gone = &results[i]
		}
	}
	require.NotNil(t, gone)
	assert.ErrorIs(t, gone.Err, agent.ErrNotFound)
	assert.Empty(t, gone.Dirs)
	assert.Empty(t, gone.Files)

	st := tr.Stats()
	assert.Equal(t, 3, st.Listed)
	assert.Equal(t, 1, st.Failed)
	assert.True(t, st.Finished)
	assert.False(t, st.Complete())
}

func TestEngine_TransportFailureDropsSubtree(t *testing.T) {
	tree := newFakeTree()
	tree.grow("/r", 3, 2)
	tree.fail["/r/d0"] = fmt.Errorf("%w: connection refused", agent.ErrTransport)

	tr, err := newTestEngine(t, tree, 3, nil).Walk(context.Background(), "/r")
	require.NoError(t, err)
	results := drain(t, tr)

	// root, the failed d0 marker, and the full d1 subtree of 1+2+4.
	assert.Len(t, results, 9)
	for _, r := range results {
		if r.Path == "/r/d0" {
			assert.ErrorIs(t, r.Err, agent.ErrTransport)
		}
		assert.NotContains(t, r.Path, "/r/d0/")
	}
	assert.Equal(t, 0, tree.callCount("/r/d0/d0"))
	assert.False(t, tr.Stats().Complete())
}

func TestEngine_BoundsConcurrency(t *testing.T) {
	tree := newFakeTree()
	n := tree.grow("/r", 2, 8)
	tree.delay = 2 * time.Millisecond

	tr, err := newTestEngine(t, tree, 3, nil).Walk(context.Background(), "/r")
	require.NoError(t, err)
	results := drain(t, tr)

	assert.Len(t, results, n)
	assert.LessOrEqual(t, tree.maxInflight.Load(), int64(3))
	assert.GreaterOrEqual(t, tree.maxInflight.Load(), int64(2))
}

func TestEngine_AbortOnContextCancel(t *testing.T) {
	tree := newFakeTree()
	tree.grow("/r", 2, 3)
	tree.block["/r/d1"] = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr, err := newTestEngine(t, tree, 2, nil).Walk(ctx, "/r")
	require.NoError(t, err)

	first, ok := tr.Next(context.Background())
	require.True(t, ok)
	assert.Equal(t, "/r", first.Path)

	require.Eventually(t, func() bool { return tree.callCount("/r/d1") == 1 }, 5*time.Second, time.Millisecond)
	cancel()

	results := drain(t, tr)
	for _, r := range results {
		if r.Path == "/r/d1" {
			assert.ErrorIs(t, r.Err, context.Canceled)
		}
		assert.NotContains(t, r.Path, "/r/d1/")
	}

	st := tr.Stats()
	assert.True(t, st.Aborted)
	assert.True(t, st.Finished)
	assert.False(t, st.Complete())
	assert.Less(t, st.Results(), 13)
	assert.Equal(t, int64(0), tr.Pending())
}

func TestEngine_CloseStopsTraversal(t *testing.T) {
	tree := newFakeTree()
	tree.grow("/r", 2, 3)
	tree.block["/r/d0"] = true
	tree.block["/r/d2"] = true
	closes := &atomic.Int32{}

	tr, err := newTestEngine(t, tree, 2, closes).Walk(context.Background(), "/r")
	require.NoError(t, err)

	_, ok := tr.Next(context.Background())
	require.True(t, ok)

	tr.Close()
	tr.Close()

	_, ok = tr.Next(context.Background())
	assert.False(t, ok)
	assert.Equal(t, int32(2), closes.Load())
	assert.True(t, tr.Stats().Aborted)
	assert.Equal(t, int64(0), tr.Pending())
}

func TestEngine_BreakFromAllCloses(t *testing.T) {
	tree := newFakeTree()
	tree.grow("/r", 2, 2)
	tree.block["/r/d0"] = true
	tree.block["/r/d1"] = true
	closes := &atomic.Int32{}

	tr, err := newTestEngine(t, tree, 3, closes).Walk(context.Background(), "/r")
	require.NoError(t, err)

	seen := 0
	for range tr.All(context.Background()) {
		seen++
		break
	}

	assert.Equal(t, 1, seen)
	assert.Equal(t, int32(3), closes.Load())
	assert.True(t, tr.Stats().Aborted)
}

func TestEngine_CompletedTraversalIsNotAborted(t *testing.T) {
	tree := newFakeTree()
	tree.grow("/r", 1, 2)

	ctx, cancel := context.WithCancel(context.Background())
	tr, err := newTestEngine(t, tree, 2, nil).Walk(ctx, "/r")
	require.NoError(t, err)
	drain(t, tr)
	cancel()

	assert.False(t, tr.Stats().Aborted)
	assert.True(t, tr.Stats().Complete())
}

func TestEngine_Dedupe(t *testing.T) {
	newTree := func() *fakeTree {
		tree := newFakeTree()
		tree.dirs["/r"] = []string{"a", "b"}
		tree.dirs["/r/a"] = []string{"../b"}
		tree.dirs["/r/b"] = nil
		return tree
	}

	t.Run("disabled lists shared directory twice", func(t *testing.T) {
		tree := newTree()
		tr, err := newTestEngine(t, tree, 2, nil).Walk(context.Background(), "/r")
		require.NoError(t, err)

		assert.Len(t, drain(t, tr), 4)
		assert.Equal(t, 2, tree.callCount("/r/b"))
	})

	t.Run("enabled lists it once and breaks cycles", func(t *testing.T) {
		tree := newTree()
		tree.dirs["/r/b"] = []string{".."}
		e, err := NewEngine(Options{
			Workers:   2,
			NewClient: clientFactory(tree, &atomic.Int32{}),
			Dedupe:    true,
			Logger:    testLogger(),
		})
		require.NoError(t, err)

		tr, err := e.Walk(context.Background(), "/r")
		require.NoError(t, err)

		assert.Equal(t, []string{"/r", "/r/a", "/r/b"}, sortedPaths(drain(t, tr)))
		assert.Equal(t, 1, tree.callCount("/r/b"))
		assert.Equal(t, 1, tree.callCount("/r"))
	})
}

func TestEngine_ClientFactoryError(t *testing.T) {
	tree := newFakeTree()
	closes := &atomic.Int32{}
	calls := 0
	e, err := NewEngine(Options{
		Workers: 3,
		NewClient: func() (Lister, error) {
			calls++
			if calls == 2 {
				return nil, errors.New("no agents")
			}
			return &fakeClient{fakeTree: tree, closes: closes}, nil
		},
		Logger: testLogger(),
	})
	require.NoError(t, err)

	_, err = e.Walk(context.Background(), "/r")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no agents")
	assert.Equal(t, int32(1), closes.Load())
}

func TestNewEngine_Validation(t *testing.T) {
	_, err := NewEngine(Options{Workers: 2})
	assert.Error(t, err)

	_, err = NewEngine(Options{Workers: -1, NewClient: clientFactory(newFakeTree(), &atomic.Int32{})})
	assert.Error(t, err)

	e, err := NewEngine(Options{NewClient: clientFactory(newFakeTree(), &atomic.Int32{})})
	require.NoError(t, err)
	assert.Equal(t, DefaultWorkers, e.Workers())
}

func TestEngine_AgainstRealAgents(t *testing.T) {
	fs := lister.NewMemory()
	n, err := lister.Synthesize(fs.Filesystem(), "/data", 2, 3, 2)
	require.NoError(t, err)

	var addrs []agent.Address
	for i := 0; i < 2; i++ {
		srv, err := server.New(server.Config{
			MaxConnections: 4,
			RemotePrefix:   "/",
			LocalPrefix:    "/",
		}, fs, testLogger())
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

		tcp := ln.Addr().(*net.TCPAddr)
		addrs = append(addrs, agent.Address{Host: "127.0.0.1", Port: tcp.Port})
	}

	newClient := func() (Lister, error) {
		return agent.NewClient(agent.ClientParams{
			Addresses: addrs,
			Selector:  agent.NewRoundRobin(),
			Timeout:   5 * time.Second,
			Logger:    testLogger(),
		}), nil
	}

	e, err := NewEngine(Options{Workers: 4, NewClient: newClient, Logger: testLogger()})
	require.NoError(t, err)
	tr, err := e.Walk(context.Background(), "/data")
	require.NoError(t, err)
	results := drain(t, tr)

	assert.Len(t, results, n)
	seq, _ := newClient()
	if diff := cmp.Diff(sequentialPaths(t, seq, "/data"), sortedPaths(results)); diff != "" {
		t.Errorf("parallel walk differs from sequential (-want +got):\n%s", diff)
	}

	hosts := map[int]bool{}
	for _, r := range results {
		require.NoError(t, r.Err, r.Path)
		assert.Len(t, r.Files, 2, r.Path)
		hosts[r.Host.Port] = true
	}
	assert.Len(t, hosts, 2)
	assert.True(t, tr.Stats().Complete())
}

func TestEngine_AbortCountsDiscardedChildren(t *testing.T) {
	tree := newFakeTree()
	tree.dirs["/r"] = []string{"a"}
	tree.dirs["/r/a"] = []string{"x", "y", "z"}
	release := make(chan struct{})
	tree.hold["/r/a"] = release

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr, err := newTestEngine(t, tree, 2, nil).Walk(ctx, "/r")
	require.NoError(t, err)

	_, ok := tr.Next(context.Background())
	require.True(t, ok)
	require.Eventually(t, func() bool { return tree.callCount("/r/a") == 1 }, 5*time.Second, time.Millisecond)

	cancel()
	require.Eventually(t, func() bool { return tr.Stats().Aborted }, 5*time.Second, time.Millisecond)
	close(release)

	results := drain(t, tr)
	require.Len(t, results, 1)
	assert.Equal(t, "/r/a", results[0].Path)
	assert.Len(t, results[0].Dirs, 3)

	st := tr.Stats()
	assert.Equal(t, 3, st.Skipped)
	assert.Equal(t, 0, tree.callCount("/r/a/x"))
}
