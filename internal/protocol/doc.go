// Package protocol implements the storage agent listing protocol.
//
// # Overview
//
// The protocol is a single request/response exchange per TCP connection. It
// borrows the shape of HTTP/1.1 so that curl can talk to an agent, but it is
// not HTTP: there is no header negotiation, chunking or keep-alive. The
// server closes the connection once the response is written.
//
// # Request
//
//	GET /mnt/share/some%20dir HTTP/1.1\r\n
//
// Only the second whitespace-delimited token is consulted. It is the
// percent-encoded path to list; method and version are ignored.
//
// # Response
//
//	HTTP/1.1 200 OK
//	Content-Type: text/plain
//
//	subdir/
//	file.txt
//	dangling-link*
//
// A 200 body holds one entry per line. A trailing "/" marks a directory, a
// trailing "*" marks an entry the agent chose to report but that is neither a
// plain file nor a directory; decoders ignore those lines entirely. Every
// other non-empty line is a file.
//
// A 404 body is a single diagnostic line naming the failed path and the
// underlying error.
package protocol
