// Package server implements the storage agent: a TCP server that answers
// single-directory listing requests against the local filesystem.
//
// # Admission Control
//
// The accept loop hands each accepted connection to a bounded admission
// queue (a buffered channel of MaxConnections slots). A fixed pool of
// MaxConnections workers drains the queue, one connection at a time. When
// every worker is busy and the queue is full, the accept loop blocks until a
// slot frees up; new clients then wait in the kernel backlog. Nothing is
// rejected.
//
//	accept ──▶ admission (cap N) ──▶ worker 0..N-1 ──▶ lister
//
// # Request Lifecycle
//
//  1. Read once, up to protocol.BufferSize bytes, within ReadTimeout
//  2. Parse the request line; malformed requests are dropped without a reply
//  3. Remap the path from the remote prefix to the local prefix
//  4. List the directory and write a 200, or a 404 on any filesystem error
//  5. Close the connection
//
// # Path Remapping
//
// Coordinators address paths with their own mount point. The agent replaces
// the configured remote prefix with its local prefix:
//
//	remote=/mnt/share local=/srv/data
//	/mnt/share/x  →  /srv/data/x
//
// Paths outside the remote prefix are listed unchanged.
//
// # Shutdown
//
// Cancelling the context passed to Serve closes the listener. Connections
// already admitted are still served before Serve returns.
package server
