//go:build !unix

package server

import "net"

// createListener falls back to the standard library outside unix,
// where tcplisten's socket-option tricks don't apply.
func createListener(addr string, backlog int) (net.Listener, error) {
	return net.Listen("tcp4", addr)
}
