// Package server implements the accept loop: it turns a listening
// socket (or an inherited stdin socket) into a stream of connections,
// each handed to fcgiconn to drive the FastCGI protocol.
package server

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"

	"github.com/wmeyer/sharpcgi/fcgi/fcgiconn"
	"github.com/wmeyer/sharpcgi/fcgi/fcgirequest"
	"github.com/wmeyer/sharpcgi/fcgi/fcgiresponse"
)

// Bind selects how the listening socket is obtained.
type Bind int

const (
	// CreateSocket opens a fresh listening socket at Config.EndPoint.
	CreateSocket Bind = iota
	// UseStdinSocket adopts the socket the upstream server passed as
	// file descriptor 0, the traditional way a process manager like
	// spawn-fcgi hands off a pre-bound listener.
	UseStdinSocket
)

// Handler is re-exported so callers only need to import this package
// to wire a responder.
type Handler = fcgiconn.Handler

// Request and Response are re-exported for the same reason.
type Request = fcgirequest.Request
type Response = fcgiresponse.Response

// Config is the full external configuration surface.
type Config struct {
	Bind          Bind
	EndPoint      string // required when Bind == CreateSocket, "host:port"
	ListenBacklog int    // default 1000

	ErrorLogger func(format string, args ...any)
	TraceLogger func(format string, args ...any)

	TraceRequestHeaders  bool
	TraceResponseHeaders bool

	PropagateHandlerErrors bool // zero value catches handler errors/panics; set true to let them propagate

	MaxConns  string // FCGI_MAX_CONNS
	MaxReqs   string // FCGI_MAX_REQS
	Multiplex bool   // whether this server accepts multiplexed connections; reported as FCGI_MPXS_CONNS

	ConcurrentConnections bool // default true

	VariableEncoding encoding.Encoding // default UTF-8
}

// NewConfig returns a Config with the usual production defaults set:
// backlog 1000, concurrent connections, UTF-8 variables, handler
// errors and panics caught. The zero Config only disables
// concurrency, matching Go's usual "zero value is the conservative
// choice" convention; most callers should start from NewConfig
// instead.
func NewConfig() Config {
	return Config{
		ListenBacklog:         1000,
		ConcurrentConnections: true,
		VariableEncoding:      unicode.UTF8,
	}
}

// withDefaults fills in the zero-value defaults with those same production values.
func (c Config) withDefaults() Config {
	if c.ListenBacklog == 0 {
		c.ListenBacklog = 1000
	}
	if c.ErrorLogger == nil {
		c.ErrorLogger = func(string, ...any) {}
	}
	if c.TraceLogger == nil {
		c.TraceLogger = func(string, ...any) {}
	}
	if c.VariableEncoding == nil {
		c.VariableEncoding = unicode.UTF8
	}
	return c
}

func mpxsConnsValue(multiplex bool) string {
	if multiplex {
		return "1"
	}
	return "0"
}

func (c Config) connConfig() fcgiconn.Config {
	return fcgiconn.Config{
		Multiplex:              c.Multiplex,
		PropagateHandlerErrors: c.PropagateHandlerErrors,
		TraceRequestHeaders:    c.TraceRequestHeaders,
		TraceResponseHeaders:   c.TraceResponseHeaders,
		VariableEncoding:       c.VariableEncoding,
		Values: fcgiconn.Values{
			MaxConns:  c.MaxConns,
			MaxReqs:   c.MaxReqs,
			MpxsConns: mpxsConnsValue(c.Multiplex),
		},
		ErrorLog: fcgiconn.Logger(c.ErrorLogger),
		TraceLog: fcgiconn.Logger(c.TraceLogger),
	}
}
