// ABOUTME: Parallel walk engine: a fixed worker pool sharing a work queue, a result queue,
// ABOUTME: and a pending counter that reaches zero exactly once, when the traversal is done.

package walk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/2389/storage-agent/internal/dedupe"
)

// DefaultWorkers is the fan-out degree used when Options.Workers is unset.
const DefaultWorkers = 4

// Options configures an Engine.
type Options struct {
	// Workers is the fixed fan-out degree of every traversal.
	Workers int
	// NewClient is called once per worker when a traversal starts.
	NewClient func() (Lister, error)
	// Dedupe drops directories whose joined path was already enqueued.
	Dedupe bool
	// DedupeSize bounds the dedupe set; zero means unbounded.
	DedupeSize int
	Logger     *slog.Logger
}

// Engine starts parallel traversals.
type Engine struct {
	opts   Options
	logger *slog.Logger

	// observe, when set, sees every new pending value. Called with the
	// traversal lock held.
	observe func(pending int64)
}

// NewEngine validates opts and creates an Engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.NewClient == nil {
		return nil, errors.New("walk: NewClient is required")
	}
	if opts.Workers < 0 {
		return nil, fmt.Errorf("walk: workers must not be negative, got %d", opts.Workers)
	}
	if opts.Workers == 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		opts:   opts,
		logger: opts.Logger.With("component", "walk"),
	}, nil
}

// Workers returns the fan-out degree.
func (e *Engine) Workers() int {
	return e.opts.Workers
}

// Walk starts a traversal of root. Cancelling ctx aborts it.
func (e *Engine) Walk(ctx context.Context, root string) (*Traversal, error) {
	clients := make([]Lister, 0, e.opts.Workers)
	for i := 0; i < e.opts.Workers; i++ {
		c, err := e.opts.NewClient()
		if err != nil {
			closeClients(clients)
			return nil, fmt.Errorf("walk: creating client %d: %w", i, err)
		}
		clients = append(clients, c)
	}

	root = path.Clean(root)
	id := uuid.NewString()
	// In-flight requests are cancelled by abort, after it marks the traversal.
	workCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	t := &Traversal{
		id:      id,
		root:    root,
		logger:  e.logger.With("traversal", id),
		observe: e.observe,
		clients: clients,
		cancel:  cancel,
		notify:  make(chan struct{}, 1),
		start:   time.Now(),
	}
	t.workReady = sync.NewCond(&t.mu)
	if e.opts.Dedupe {
		t.seen = dedupe.New(e.opts.DedupeSize)
		t.seen.Mark(root)
	}

	t.mu.Lock()
	t.enqueueLocked(root)
	t.mu.Unlock()

	for i, c := range clients {
		t.group.Go(func() error {
			t.work(workCtx, i, c)
			return nil
		})
	}
	t.stopAbortWatch = context.AfterFunc(ctx, t.abort)

	t.logger.Info("traversal started", "root", root, "workers", len(clients))
	return t, nil
}

// Traversal is one running walk. Next, All and Close are meant for a single
// consumer goroutine; Stats and Pending may be called from anywhere.
type Traversal struct {
	id      string
	root    string
	logger  *slog.Logger
	observe func(int64)
	clients []Lister
	seen    *dedupe.Set
	group   errgroup.Group
	cancel  context.CancelFunc
	start   time.Time

	stopAbortWatch func() bool
	teardownOnce   sync.Once

	mu        sync.Mutex
	workReady *sync.Cond
	queue     []string
	results   []Result
	notify    chan struct{}
	pending   int64
	finished  bool
	aborted   bool
	closed    bool
	listed    int
	failed    int
	skipped   int
	elapsed   time.Duration
}

// ID returns the traversal's log correlation ID.
func (t *Traversal) ID() string {
	return t.id
}

// enqueueLocked adds one work item; the increment and the push are a single step.
func (t *Traversal) enqueueLocked(p string) {
	t.pending++
	t.queue = append(t.queue, p)
	t.observeLocked()
	t.workReady.Signal()
}

// doneLocked retires one work item.
func (t *Traversal) doneLocked() {
	t.pending--
	t.observeLocked()
	if t.pending < 0 {
		panic("walk: pending count went negative")
	}
	if t.pending == 0 {
		t.finished = true
		t.elapsed = time.Since(t.start)
		t.workReady.Broadcast()
		t.signal()
	}
}

func (t *Traversal) observeLocked() {
	if t.observe != nil {
		t.observe(t.pending)
	}
}

// signal wakes the consumer without blocking.
func (t *Traversal) signal() {
	select {
	case t.notify <- struct{}{}:
	default:
	}
}

// next blocks until a work item is available or the traversal is finished.
func (t *Traversal) next() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for len(t.queue) == 0 && !t.finished {
		t.workReady.Wait()
	}
	if len(t.queue) == 0 {
		return "", false
	}

	item := t.queue[0]
	t.queue[0] = ""
	t.queue = t.queue[1:]
	return item, true
}

// work is the worker loop. It returns once the traversal is finished.
func (t *Traversal) work(ctx context.Context, id int, client Lister) {
	logger := t.logger.With("worker", id)

	for {
		item, ok := t.next()
		if !ok {
			return
		}

		if t.isAborted() {
			t.mu.Lock()
			t.skipped++
			t.doneLocked()
			t.mu.Unlock()
			continue
		}

		listing, err := client.List(ctx, item)
		res := newResult(item, listing, err)
		if err != nil {
			logger.Warn("listing failed, subtree dropped", "path", item, "error", err)
		} else {
			logger.Debug("listed", "path", item, "dirs", len(res.Dirs), "files", len(res.Files), "host", res.Host.String())
		}

		children := make([]string, 0, len(res.Dirs))
		for _, d := range res.Dirs {
			child := path.Join(item, d)
			if t.seen != nil && t.seen.CheckAndMark(child) {
				logger.Debug("skipping already enqueued directory", "path", child)
				continue
			}
			children = append(children, child)
		}

		t.complete(res, children)
	}
}

// complete publishes res, enqueues children, and retires the item, all
// under one lock.
func (t *Traversal) complete(res Result, children []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.results = append(t.results, res)
	if res.OK() {
		t.listed++
	} else {
		t.failed++
	}
	t.signal()

	if t.aborted {
		t.skipped += len(children)
	} else {
		for _, c := range children {
			t.enqueueLocked(c)
		}
	}
	t.doneLocked()
}

func (t *Traversal) isAborted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.aborted
}

// abort stops enqueueing, drops queued work, and cancels in-flight requests.
func (t *Traversal) abort() {
	t.mu.Lock()
	if t.finished || t.aborted {
		t.mu.Unlock()
		return
	}
	t.aborted = true
	dropped := len(t.queue)
	queued := t.queue
	t.queue = nil
	for range queued {
		t.skipped++
		t.doneLocked()
	}
	t.mu.Unlock()

	t.cancel()
	t.logger.Warn("traversal aborted", "dropped", dropped)
}

// Next returns the next Result. It returns false once every Result has been
// consumed, after Close, or when ctx is done.
func (t *Traversal) Next(ctx context.Context) (Result, bool) {
	for {
		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			return Result{}, false
		}
		if len(t.results) > 0 {
			res := t.results[0]
			t.results[0] = Result{}
			t.results = t.results[1:]
			t.mu.Unlock()
			return res, true
		}
		finished := t.finished
		t.mu.Unlock()

		if finished {
			t.teardown()
			return Result{}, false
		}

		select {
		case <-t.notify:
		case <-ctx.Done():
			return Result{}, false
		}
	}
}

// All ranges over the remaining Results. Breaking out of the loop aborts
// the traversal.
func (t *Traversal) All(ctx context.Context) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		for {
			res, ok := t.Next(ctx)
			if !ok {
				return
			}
			if !yield(res) {
				t.Close()
				return
			}
		}
	}
}

// Close aborts the traversal if it is still running, waits for the workers
// to exit, and releases their clients. It is safe to call more than once.
func (t *Traversal) Close() {
	t.abort()

	t.mu.Lock()
	t.closed = true
	t.results = nil
	t.mu.Unlock()

	t.teardown()
}

// teardown waits for the pool and releases clients once.
func (t *Traversal) teardown() {
	t.teardownOnce.Do(func() {
		_ = t.group.Wait()
		t.stopAbortWatch()
		t.cancel()
		closeClients(t.clients)

		st := t.Stats()
		t.logger.Info("traversal finished",
			"root", t.root,
			"listed", st.Listed,
			"failed", st.Failed,
			"skipped", st.Skipped,
			"aborted", st.Aborted,
			"elapsed", st.Elapsed,
		)
	})
}

// Pending returns the number of paths enqueued but not yet fully processed.
func (t *Traversal) Pending() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// Stats returns a snapshot of the traversal counters.
func (t *Traversal) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := t.elapsed
	if !t.finished {
		elapsed = time.Since(t.start)
	}
	return Stats{
		ID:       t.id,
		Root:     t.root,
		Listed:   t.listed,
		Failed:   t.failed,
		Skipped:  t.skipped,
		Aborted:  t.aborted,
		Finished: t.finished,
		Elapsed:  elapsed,
	}
}

func closeClients(clients []Lister) {
	for _, c := range clients {
		if closer, ok := c.(io.Closer); ok {
			_ = closer.Close()
		}
	}
}
