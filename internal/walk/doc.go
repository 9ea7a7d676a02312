// Package walk turns single-directory listings into a complete recursive
// traversal of a remote tree.
//
// # Sequential Walker
//
// Sequential is the reference traversal: depth-first, one request at a time,
// exposed as an iter.Seq of Results. It defines the set of directories a
// traversal must visit.
//
//	for res := range walk.NewSequential(client, logger).Walk(ctx, "/mnt/share") {
//	    fmt.Println(res.Path, len(res.Dirs), len(res.Files))
//	}
//
// # Parallel Engine
//
// Engine fans a traversal out over a fixed pool of workers. Each worker owns
// one client; host selection happens per request inside the client, so the
// worker count alone bounds the number of outstanding requests.
//
// A Traversal holds the shared state every worker sees:
//
//   - work queue: paths still awaiting a listing
//   - result queue: completed Results, consumed by Next
//   - pending count: paths enqueued but not fully processed (queued + in flight)
//
// A worker that finishes a path does, under one lock: push the Result, enqueue
// every child directory (incrementing pending once per child), then decrement
// pending once for the path itself. Pending therefore reaches zero exactly
// once, only after the last Result is queued, and the consumer knows the
// traversal is over without polling anything.
//
//	eng, _ := walk.NewEngine(walk.Options{Workers: 8, NewClient: newClient})
//	tr, _ := eng.Walk(ctx, "/mnt/share")
//	defer tr.Close()
//	for res := range tr.All(ctx) {
//	    ...
//	}
//
// # Failures
//
// A failed listing (unreachable agent, timeout, 404) still produces a Result,
// with Err set and no children, so its subtree is not traversed. The
// traversal itself completes without error; Stats reports how many listings
// failed and Stats.Complete tells callers whether the result is the whole
// tree.
//
// # Abort
//
// Cancelling the context passed to Walk, calling Close, or breaking out of
// All aborts the traversal: queued paths are dropped, in-flight requests
// are cancelled, and the workers exit once pending drains to zero.
package walk
