//go:build unix

package server

import (
	"net"

	"github.com/valyala/tcplisten"
)

// createListener opens a fresh TCP listener at addr with the
// configured backlog, using SO_REUSEPORT so a restarted process can
// rebind immediately (grounded on valyala-fasthttp/prefork's use of
// the same library for the same reason).
func createListener(addr string, backlog int) (net.Listener, error) {
	cfg := tcplisten.Config{
		ReusePort:   true,
		Backlog:     backlog,
		DeferAccept: true,
	}
	return cfg.NewListener("tcp4", addr)
}
