// ABOUTME: Tests for the depth-first sequential walker.
// ABOUTME: Covers visit order, failure markers, early break, and cancellation.

package walk

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/storage-agent/internal/agent"
)

func collect(seq func(func(Result) bool)) []Result {
	var out []Result
	for r := range seq {
		out = append(out, r)
	}
	return out
}

func paths(results []Result) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Path)
	}
	return out
}

func TestSequential_DepthFirstOrder(t *testing.T) {
	tree := newFakeTree()
	tree.grow("/r", 2, 2)

	results := collect(NewSequential(tree, testLogger()).Walk(context.Background(), "/r/"))

	assert.Equal(t, []string{
		"/r",
		"/r/d0", "/r/d0/d0", "/r/d0/d1",
		"/r/d1", "/r/d1/d0", "/r/d1/d1",
	}, paths(results))
	assert.Equal(t, []string{"d0", "d1"}, results[0].Dirs)
	assert.Equal(t, "fake", results[0].Host.Host)
}

func TestSequential_FailuresAreLeaves(t *testing.T) {
	tree := newFakeTree()
	tree.grow("/r", 2, 2)
	tree.fail["/r/d0"] = fmt.Errorf("%w: reset", agent.ErrTransport)
	tree.dirs["/r/d1"] = append(tree.dirs["/r/d1"], "missing")

	results := collect(NewSequential(tree, testLogger()).Walk(context.Background(), "/r"))

	assert.Equal(t, []string{"/r", "/r/d0", "/r/d1", "/r/d1/d0", "/r/d1/d1", "/r/d1/missing"}, paths(results))
	assert.ErrorIs(t, results[1].Err, agent.ErrTransport)
	assert.False(t, results[1].OK())
	assert.ErrorIs(t, results[5].Err, agent.ErrNotFound)
	assert.Empty(t, results[5].Dirs)
}

func TestSequential_Break(t *testing.T) {
	tree := newFakeTree()
	tree.grow("/r", 3, 3)

	var got []string
	for r := range NewSequential(tree, testLogger()).Walk(context.Background(), "/r") {
		got = append(got, r.Path)
		if len(got) == 2 {
			break
		}
	}

	assert.Equal(t, []string{"/r", "/r/d0"}, got)
	assert.Equal(t, 0, tree.callCount("/r/d0/d0"))
}

func TestSequential_ContextCancelled(t *testing.T) {
	tree := newFakeTree()
	tree.grow("/r", 2, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var got []string
	for r := range NewSequential(tree, testLogger()).Walk(ctx, "/r") {
		got = append(got, r.Path)
		cancel()
	}

	require.Len(t, got, 1)
	assert.Equal(t, 1, tree.callCount("/r"))
}

func TestStats_Complete(t *testing.T) {
	assert.True(t, Stats{Finished: true, Listed: 3}.Complete())
	assert.False(t, Stats{Finished: false}.Complete())
	assert.False(t, Stats{Finished: true, Aborted: true}.Complete())
	assert.False(t, Stats{Finished: true, Failed: 1}.Complete())
	assert.False(t, Stats{Finished: true, Skipped: 2}.Complete())
	assert.Equal(t, 5, Stats{Listed: 3, Failed: 2}.Results())
}
