// ABOUTME: Client for the agent listing protocol: one request/response round trip per call.
// ABOUTME: Chooses a host per request, decodes listings, and keeps a last-call snapshot.

package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/2389/storage-agent/internal/protocol"
)

// ErrTransport indicates the round trip itself failed.
var ErrTransport = errors.New("agent transport error")

// ErrNotFound indicates the agent could not list the path.
var ErrNotFound = errors.New("agent could not list path")

// ErrUnexpectedStatus indicates a status code other than 200 or 404.
var ErrUnexpectedStatus = errors.New("unexpected agent status")

// Address is one storage agent endpoint.
type Address struct {
	Host string
	Port int
}

// String returns host:port.
func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// Addresses pairs every host with the shared port.
func Addresses(hosts []string, port int) []Address {
	addrs := make([]Address, 0, len(hosts))
	for _, h := range hosts {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		addrs = append(addrs, Address{Host: h, Port: port})
	}
	return addrs
}

// AgentError is a non-200 reply from an agent.
type AgentError struct {
	Host       Address
	Path       string
	StatusCode int
	Body       string
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent %s: %s: status %d: %s", e.Host, e.Path, e.StatusCode, strings.TrimSpace(e.Body))
}

// Unwrap maps the status to ErrNotFound or ErrUnexpectedStatus.
func (e *AgentError) Unwrap() error {
	if e.StatusCode == protocol.StatusNotFound {
		return ErrNotFound
	}
	return ErrUnexpectedStatus
}

// Listing is one decoded directory level.
type Listing struct {
	Path       string
	Dirs       []string
	Files      []string
	Host       Address
	StatusCode int
}

// Dialer opens connections to agents. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// ClientParams configures a Client.
type ClientParams struct {
	Addresses []Address
	// Selector defaults to RandomSelector.
	Selector Selector
	// Timeout bounds each round trip. Zero means no deadline beyond ctx.
	Timeout time.Duration
	// Dialer defaults to a zero net.Dialer.
	Dialer Dialer
	Logger *slog.Logger
}

// Client talks to the configured agents. It is not safe for concurrent use.
type Client struct {
	addrs    []Address
	selector Selector
	timeout  time.Duration
	dialer   Dialer
	logger   *slog.Logger

	statusCode  int
	contentType string
	text        string
	lastHost    Address
	elapsed     time.Duration
}

// NewClient creates a Client.
func NewClient(p ClientParams) *Client {
	c := &Client{
		addrs:    append([]Address(nil), p.Addresses...),
		selector: p.Selector,
		timeout:  p.Timeout,
		dialer:   p.Dialer,
		logger:   p.Logger,
	}
	if c.selector == nil {
		c.selector = RandomSelector{}
	}
	if c.dialer == nil {
		c.dialer = &net.Dialer{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "agent-client")
	return c
}

// List fetches the immediate children of path from one agent.
// A 404 returns the Listing, with no children, together with an error
// matching ErrNotFound.
func (c *Client) List(ctx context.Context, path string) (*Listing, error) {
	host, err := c.selector.Select(c.addrs)
	if err != nil {
		c.logger.Warn("hosts not set for agent client", "error", err)
		return nil, err
	}

	c.lastHost = host
	c.statusCode = 0
	c.contentType = ""
	c.text = ""
	c.elapsed = 0

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.roundTrip(ctx, host, path)
	if err != nil {
		c.logger.Warn("listing request failed", "host", host.String(), "path", path, "error", err)
		return nil, err
	}
	c.elapsed = time.Since(start).Round(100 * time.Microsecond)
	c.statusCode = resp.StatusCode
	c.contentType = resp.ContentType
	c.text = resp.Body

	listing := &Listing{
		Path:       path,
		Host:       host,
		StatusCode: resp.StatusCode,
	}

	switch resp.StatusCode {
	case protocol.StatusOK:
		listing.Dirs, listing.Files = protocol.DecodeBody(resp.Body)
		return listing, nil
	case protocol.StatusNotFound:
		return listing, &AgentError{Host: host, Path: path, StatusCode: resp.StatusCode, Body: resp.Body}
	default:
		return nil, &AgentError{Host: host, Path: path, StatusCode: resp.StatusCode, Body: resp.Body}
	}
}

func (c *Client) roundTrip(ctx context.Context, host Address, path string) (*protocol.Response, error) {
	conn, err := c.dialer.DialContext(ctx, "tcp", host.String())
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrTransport, host, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// Unblock reads and writes if ctx is cancelled mid-flight.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := io.WriteString(conn, protocol.EncodeRequest(path)); err != nil {
		return nil, fmt.Errorf("%w: write %s: %w", ErrTransport, host, contextErr(ctx, err))
	}

	resp, err := protocol.ReadResponse(conn)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrTransport, host, contextErr(ctx, err))
	}
	return resp, nil
}

// contextErr prefers the context's error over the deadline error it caused.
func contextErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	// The socket deadline can fire a moment before the context timer does.
	if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
		return context.DeadlineExceeded
	}
	return err
}

// StatusCode returns the status of the last completed call, 0 if it failed in transport.
func (c *Client) StatusCode() int { return c.statusCode }

// ContentType returns the content type of the last completed call.
func (c *Client) ContentType() string { return c.contentType }

// Text returns the raw body of the last completed call.
func (c *Client) Text() string { return c.text }

// LastHost returns the agent chosen for the last call.
func (c *Client) LastHost() Address { return c.lastHost }

// LastResponseTime returns the round-trip time of the last call, rounded to
// a tenth of a millisecond, or zero if it failed in transport.
func (c *Client) LastResponseTime() time.Duration { return c.elapsed }
