package server

import (
	"fmt"
	"net"

	"github.com/wmeyer/sharpcgi/fcgi/fcgiconn"
	"github.com/wmeyer/sharpcgi/pkg/autoinc"
)

// Serve accepts connections per cfg and hands each one to handler
// until done fires. It never returns on an accept error; those are
// logged and accepting continues.
func Serve(done <-chan struct{}, cfg Config, handler Handler) error {
	cfg = cfg.withDefaults()

	listener, err := cfg.listen()
	if err != nil {
		return fmt.Errorf("server: cannot obtain listener: %w", err)
	}
	defer listener.Close()

	filter := newPeerFilter()
	connConfig := cfg.connConfig()
	seq := &autoinc.AutoInc[uint64]{}

	connChan := make(chan net.Conn)
	errChan := make(chan error)

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				select {
				case errChan <- err:
					continue
				case <-done:
					return
				}
			}
			connChan <- conn
		}
	}()

	for {
		select {
		case <-done:
			return nil

		case conn := <-connChan:
			if !filter.allows(conn.RemoteAddr()) {
				cfg.ErrorLogger("server: rejecting connection from disallowed peer %v", conn.RemoteAddr())
				conn.Close()
				continue
			}

			n := seq.Get()
			cfg.TraceLogger("server: accepted connection %d from %v", n, conn.RemoteAddr())

			run := func() {
				defer conn.Close()
				fcgiconn.New(conn, connConfig, handler).Serve()
				cfg.TraceLogger("server: connection %d closed", n)
			}
			if cfg.ConcurrentConnections {
				go run()
			} else {
				run()
			}

		case err := <-errChan:
			cfg.ErrorLogger("server: accept error: %v", err)
		}
	}
}

// listen obtains the listener per Config.Bind.
func (c Config) listen() (net.Listener, error) {
	switch c.Bind {
	case UseStdinSocket:
		return stdinListener()
	default:
		if c.EndPoint == "" {
			return nil, fmt.Errorf("server: EndPoint is required when Bind == CreateSocket")
		}
		return createListener(c.EndPoint, c.ListenBacklog)
	}
}
