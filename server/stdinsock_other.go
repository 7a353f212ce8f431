//go:build !unix

package server

import (
	"errors"
	"net"
)

// stdinListener is unavailable outside unix: adopting a socket handed
// over as a standard input handle needs a platform-specific
// duplication primitive (WSADuplicateSocket on Windows) this library
// does not implement.
func stdinListener() (net.Listener, error) {
	return nil, errors.New("server: UseStdinSocket is not supported on this platform")
}
