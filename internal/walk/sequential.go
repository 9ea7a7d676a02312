// ABOUTME: Depth-first single-connection walker used as the reference traversal.
// ABOUTME: Yields one Result per directory through an iter.Seq.

package walk

import (
	"context"
	"iter"
	"log/slog"
	"path"
)

// Sequential walks a tree depth-first with one client.
type Sequential struct {
	client Lister
	logger *slog.Logger
}

// NewSequential creates a Sequential walker.
func NewSequential(client Lister, logger *slog.Logger) *Sequential {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sequential{
		client: client,
		logger: logger.With("component", "walk"),
	}
}

// Walk lists root, yields it, then walks every child directory in listing
// order. Breaking out of the loop or cancelling ctx stops the walk.
func (s *Sequential) Walk(ctx context.Context, root string) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		s.walk(ctx, path.Clean(root), yield)
	}
}

func (s *Sequential) walk(ctx context.Context, dir string, yield func(Result) bool) bool {
	if ctx.Err() != nil {
		return false
	}

	listing, err := s.client.List(ctx, dir)
	res := newResult(dir, listing, err)
	if err != nil {
		s.logger.Warn("listing failed, subtree dropped", "path", dir, "error", err)
	}
	if !yield(res) {
		return false
	}

	for _, d := range res.Dirs {
		if !s.walk(ctx, path.Join(dir, d), yield) {
			return false
		}
	}
	return true
}
