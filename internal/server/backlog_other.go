// ABOUTME: Listen backlog fallback for platforms without listen(2) re-issue.
// ABOUTME: The OS default backlog applies.

//go:build !unix

package server

import "net"

func setBacklog(net.Listener, int) error {
	return nil
}
