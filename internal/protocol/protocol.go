// ABOUTME: Wire codec for the agent listing protocol: request lines and response frames.
// ABOUTME: Shared by the agent server and the coordinator-side client.

package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
)

const (
	// MethodGet is the method written by EncodeRequest. Servers ignore it.
	MethodGet = "GET"
	// Version is the protocol version token on both request and status lines.
	Version = "HTTP/1.1"
	// ContentType is the only content type the agent ever sends.
	ContentType = "text/plain"

	// BufferSize is the maximum number of request bytes a server reads.
	BufferSize = 1024
)

// Status codes used by the agent.
const (
	StatusOK       = 200
	StatusNotFound = 404
)

// ErrMalformedRequest indicates a request line without a path token.
var ErrMalformedRequest = errors.New("malformed request line")

// ErrMalformedResponse indicates a response that has no parsable status line.
var ErrMalformedResponse = errors.New("malformed response")

// Response is a decoded response frame.
type Response struct {
	StatusCode  int
	Reason      string
	ContentType string
	Body        string
}

// StatusText returns the reason phrase for a status code.
func StatusText(code int) string {
	switch code {
	case StatusOK:
		return "OK"
	case StatusNotFound:
		return "Not Found"
	default:
		return "Unknown"
	}
}

// EncodeRequest builds the request line for path. Each path segment is
// percent-encoded; separators stay literal.
func EncodeRequest(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return MethodGet + " " + strings.Join(segments, "/") + " " + Version + "\r\n"
}

// ParseRequestLine extracts and percent-decodes the path from the first line
// of data.
func ParseRequestLine(data string) (string, error) {
	line, _, _ := strings.Cut(data, "\n")
	line = strings.TrimSuffix(line, "\r")

	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", ErrMalformedRequest
	}

	path, err := url.PathUnescape(fields[1])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	if path == "" {
		return "", ErrMalformedRequest
	}
	return path, nil
}

// WriteResponse writes a complete response frame to w.
func WriteResponse(w io.Writer, status int, body string) error {
	var b strings.Builder
	b.Grow(len(body) + 64)
	fmt.Fprintf(&b, "%s %d %s\n", Version, status, StatusText(status))
	fmt.Fprintf(&b, "Content-Type: %s\n", ContentType)
	b.WriteString("\n")
	b.WriteString(body)

	_, err := io.WriteString(w, b.String())
	return err
}

// ReadResponse reads a response frame until EOF. Both "\n" and "\r\n" line
// endings are accepted in the status line and headers.
func ReadResponse(r io.Reader) (*Response, error) {
	br := bufio.NewReader(r)

	statusLine, err := readLine(br)
	if err != nil {
		return nil, fmt.Errorf("%w: reading status line: %v", ErrMalformedResponse, err)
	}

	resp, err := parseStatusLine(statusLine)
	if err != nil {
		return nil, err
	}

	for {
		line, err := readLine(br)
		if err != nil {
			if errors.Is(err, io.EOF) {
				// headers with no body separator; treat as empty body
				return resp, nil
			}
			return nil, fmt.Errorf("reading headers: %w", err)
		}
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if ok && strings.EqualFold(strings.TrimSpace(name), "Content-Type") {
			resp.ContentType = strings.TrimSpace(value)
		}
	}

	body, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	resp.Body = string(body)
	return resp, nil
}

// readLine returns one line with its terminator stripped. A final line
// without terminator is returned with a nil error.
func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}

func parseStatusLine(line string) (*Response, error) {
	version, rest, ok := strings.Cut(line, " ")
	if !ok || !strings.HasPrefix(version, "HTTP/") {
		return nil, fmt.Errorf("%w: status line %q", ErrMalformedResponse, line)
	}

	codeStr, reason, _ := strings.Cut(rest, " ")
	code, err := strconv.Atoi(codeStr)
	if err != nil {
		return nil, fmt.Errorf("%w: status code %q", ErrMalformedResponse, codeStr)
	}

	return &Response{
		StatusCode: code,
		Reason:     reason,
	}, nil
}
