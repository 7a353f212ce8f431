//go:build unix

package server

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// stdinListener adopts file descriptor 0 as a listening socket: the
// traditional handoff a process manager (spawn-fcgi, inetd-style
// supervisors) uses instead of passing an address. The
// original source performed this with a Windows WSADuplicateSocket
// call; on unix the descriptor is already a socket, so no duplication
// primitive is needed, only a sanity check that fd 0 really is one.
func stdinListener() (net.Listener, error) {
	fd := int(os.Stdin.Fd())
	soType, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_TYPE)
	if err != nil {
		return nil, fmt.Errorf("server: stdin is not a socket: %w", err)
	}
	if soType != unix.SOCK_STREAM {
		return nil, fmt.Errorf("server: stdin socket is not SOCK_STREAM")
	}

	f := os.NewFile(uintptr(fd), "fcgi-stdin-socket")
	l, err := net.FileListener(f)
	if err != nil {
		return nil, fmt.Errorf("server: cannot adopt stdin socket: %w", err)
	}
	return l, nil
}
