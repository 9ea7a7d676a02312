// ABOUTME: Applies a configured listen backlog to a bound TCP listener on unix.
// ABOUTME: Re-issuing listen(2) on a listening socket updates its queue length.

//go:build unix

package server

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

func setBacklog(ln net.Listener, backlog int) error {
	tl, ok := ln.(*net.TCPListener)
	if !ok {
		return fmt.Errorf("listener %T is not TCP", ln)
	}
	raw, err := tl.SyscallConn()
	if err != nil {
		return err
	}

	var listenErr error
	if err := raw.Control(func(fd uintptr) {
		listenErr = unix.Listen(int(fd), backlog)
	}); err != nil {
		return err
	}
	return listenErr
}
