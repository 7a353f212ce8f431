package tcpproxy

import (
	"fmt"
	"io"
)

// DialFunc opens the far side of a proxied connection.
type DialFunc func() (io.ReadWriteCloser, error)

// Handler serves one accepted client connection.
type Handler func(clientConn io.ReadWriter) error

// Proxy builds a Handler that dials upstream with dial, relays the
// client's message through clientToServer, then the upstream
// response back through serverToClient.
func Proxy[T any](dial DialFunc, clientToServer, serverToClient Pipe[T]) Handler {
	return func(clientConn io.ReadWriter) error {
		serverConn, err := dial()
		if err != nil {
			return fmt.Errorf("error connecting upstream: %w", err)
		}
		defer serverConn.Close()

		if err := clientToServer.Run(clientConn, serverConn, "request"); err != nil {
			return err
		}
		return serverToClient.Run(serverConn, clientConn, "response")
	}
}
