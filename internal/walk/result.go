// ABOUTME: Result and client types shared by the sequential walker and the parallel engine.
// ABOUTME: A Result is one directory listing or a failure marker for that directory.

package walk

import (
	"context"
	"time"

	"github.com/2389/storage-agent/internal/agent"
)

// Lister lists one directory level. *agent.Client satisfies it.
type Lister interface {
	List(ctx context.Context, path string) (*agent.Listing, error)
}

// Result is the outcome of listing one directory.
type Result struct {
	Path  string
	Dirs  []string
	Files []string
	Host  agent.Address
	// Err is set when the listing failed; Dirs and Files are then empty.
	Err error
}

// OK reports whether the listing succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Stats summarizes a traversal.
type Stats struct {
	ID   string
	Root string

	Listed  int // successful listings
	Failed  int // listings that returned an error
	Skipped int // paths dropped by an abort before they were listed or enqueued

	Aborted  bool
	Finished bool
	Elapsed  time.Duration
}

// Results is the number of Results produced.
func (s Stats) Results() int {
	return s.Listed + s.Failed
}

// Complete reports whether the traversal covered the whole tree.
func (s Stats) Complete() bool {
	return s.Finished && !s.Aborted && s.Failed == 0 && s.Skipped == 0
}

func newResult(path string, listing *agent.Listing, err error) Result {
	res := Result{Path: path, Err: err}
	if listing == nil {
		return res
	}
	res.Host = listing.Host
	if err == nil {
		res.Dirs = listing.Dirs
		res.Files = listing.Files
	}
	return res
}
