// ABOUTME: Storage agent TCP server with a bounded admission queue and fixed worker pool.
// ABOUTME: Answers one listing request per connection, then closes it.

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/2389/storage-agent/internal/lister"
	"github.com/2389/storage-agent/internal/protocol"
)

// Config holds agent server settings.
type Config struct {
	// Addr is the host:port to listen on.
	Addr string
	// MaxConnections is both the worker count and the admission queue bound.
	MaxConnections int
	// Backlog is the listen(2) backlog. Zero keeps the OS default.
	Backlog int

	RemotePrefix string
	LocalPrefix  string

	// ReportSkipped emits skip-marked lines for entries that are neither
	// files nor directories.
	ReportSkipped bool

	// ReadTimeout bounds the wait for the request; zero means
	// DefaultReadTimeout. WriteTimeout bounds the reply; zero disables it.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultReadTimeout keeps a peer that never sends a request from holding a
// worker indefinitely.
const DefaultReadTimeout = 30 * time.Second

// Stats counts how connections ended.
type Stats struct {
	Served   uint64 // 200 responses
	NotFound uint64 // 404 responses
	Dropped  uint64 // closed without a response
}

// Server is a storage agent.
type Server struct {
	cfg    Config
	lister lister.Lister
	logger *slog.Logger

	mu sync.Mutex
	ln net.Listener

	served   atomic.Uint64
	notFound atomic.Uint64
	dropped  atomic.Uint64
}

// New validates cfg and creates a Server.
func New(cfg Config, l lister.Lister, logger *slog.Logger) (*Server, error) {
	if cfg.MaxConnections < 1 {
		return nil, fmt.Errorf("max connections must be at least 1, got %d", cfg.MaxConnections)
	}
	if cfg.RemotePrefix == "" || cfg.LocalPrefix == "" {
		return nil, fmt.Errorf("remote and local path prefixes are required")
	}
	if l == nil {
		return nil, fmt.Errorf("lister is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	cfg.RemotePrefix = normalizePrefix(cfg.RemotePrefix)
	cfg.LocalPrefix = normalizePrefix(cfg.LocalPrefix)

	return &Server{
		cfg:    cfg,
		lister: l,
		logger: logger.With("component", "server"),
	}, nil
}

// normalizePrefix strips trailing separators, keeping a lone "/".
func normalizePrefix(p string) string {
	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" {
		return "/"
	}
	return trimmed
}

// Remap translates a coordinator path into a local path.
func (s *Server) Remap(p string) string {
	remote, local := s.cfg.RemotePrefix, s.cfg.LocalPrefix

	var rest string
	switch {
	case remote == "/":
		if !strings.HasPrefix(p, "/") {
			return p
		}
		rest = p
	case p == remote:
		rest = ""
	case strings.HasPrefix(p, remote+"/"):
		rest = p[len(remote):]
	default:
		return p
	}

	if rest == "" || rest == "/" {
		return local
	}
	if local == "/" {
		return rest
	}
	return local + rest
}

// ListenAndServe listens on the configured address and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	if s.cfg.Backlog > 0 {
		if err := setBacklog(ln, s.cfg.Backlog); err != nil {
			s.logger.Warn("could not apply listen backlog", "backlog", s.cfg.Backlog, "error", err)
		}
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done or ln fails. It takes
// ownership of ln. Admitted connections are served before Serve returns.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	admission := make(chan net.Conn, s.cfg.MaxConnections)

	var g errgroup.Group
	for i := 0; i < s.cfg.MaxConnections; i++ {
		id := i
		g.Go(func() error {
			s.worker(id, admission)
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})

	s.logger.Info("listening", "addr", ln.Addr().String(), "workers", s.cfg.MaxConnections)

	acceptErr := s.acceptLoop(ctx, ln, admission)
	cancel()
	close(admission)
	if err := g.Wait(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.logger.Debug("closing listener", "error", err)
	}

	s.logger.Info("server stopped",
		"served", s.served.Load(),
		"not_found", s.notFound.Load(),
		"dropped", s.dropped.Load(),
	)
	return acceptErr
}

// acceptLoop feeds admission until the listener closes. Sending blocks while
// the queue is full.
func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, admission chan<- net.Conn) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.logger.Warn("accept timeout", "error", err)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.logger.Debug("got a connection", "remote", conn.RemoteAddr().String())

		select {
		case admission <- conn:
		case <-ctx.Done():
			_ = conn.Close()
			return nil
		}
	}
}

// worker serves connections from admission until it is closed.
func (s *Server) worker(id int, admission <-chan net.Conn) {
	logger := s.logger.With("worker", id)
	for conn := range admission {
		s.handle(logger, conn)
	}
}

// handle runs one request/response cycle and closes conn.
func (s *Server) handle(logger *slog.Logger, conn net.Conn) {
	remote := conn.RemoteAddr().String()
	defer func() {
		_ = conn.Close()
		logger.Debug("closed connection", "remote", remote)
	}()

	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))

	data, err := readRequest(conn)
	if err != nil {
		s.dropped.Add(1)
		logger.Error("socket error", "remote", remote, "error", err)
		return
	}
	if len(data) == 0 {
		s.dropped.Add(1)
		return
	}

	path, err := protocol.ParseRequestLine(string(data))
	if err != nil {
		s.dropped.Add(1)
		logger.Debug("dropping malformed request", "remote", remote, "error", err)
		return
	}

	logger.Debug("got dirlist request", "remote", remote, "path", path)

	if s.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}
	if err := s.respond(logger, conn, path); err != nil {
		logger.Error("socket error", "remote", remote, "error", err)
	}
}

// respond lists path and writes the response frame.
func (s *Server) respond(logger *slog.Logger, w io.Writer, path string) error {
	local := s.Remap(path)
	start := time.Now()

	entries, err := s.lister.List(local)
	if err != nil {
		s.notFound.Add(1)
		logger.Warn("listdir failed", "path", path, "local", local, "error", err)
		return protocol.WriteResponse(w, protocol.StatusNotFound, protocol.NotFoundBody(path, err))
	}

	var body protocol.Body
	dirs, files := 0, 0
	for _, e := range entries {
		switch e.Kind {
		case lister.KindDir:
			body.Dir(e.Name)
			dirs++
		case lister.KindFile:
			body.File(e.Name)
			files++
		default:
			if s.cfg.ReportSkipped {
				body.Skip(e.Name)
			}
		}
	}

	logger.Debug("got dirlist",
		"local", local,
		"dirs", dirs,
		"files", files,
		"elapsed", time.Since(start),
	)

	s.served.Add(1)
	return protocol.WriteResponse(w, protocol.StatusOK, body.String())
}

// readRequest does a single read of up to protocol.BufferSize bytes and
// returns whatever arrived, newline or not. A peer that closes without
// sending anything yields no data.
func readRequest(conn net.Conn) ([]byte, error) {
	buf := make([]byte, protocol.BufferSize)
	n, err := conn.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return nil, nil
}

// Addr returns the listener address, or nil before Serve is called.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Stats returns a snapshot of the connection counters.
func (s *Server) Stats() Stats {
	return Stats{
		Served:   s.served.Load(),
		NotFound: s.notFound.Load(),
		Dropped:  s.dropped.Load(),
	}
}
