// Package fcgiconn drives one FastCGI connection: reading framed
// records, replying to management records inline, and dispatching
// application records to request handlers, either sequentially or
// with multiplexed per-request agents.
package fcgiconn

import (
	"io"
	"sync"

	"golang.org/x/text/encoding"

	"github.com/wmeyer/sharpcgi/fcgi/fcgirequest"
	"github.com/wmeyer/sharpcgi/fcgi/fcgiresponse"
	"github.com/wmeyer/sharpcgi/fcgi/fcgistream"
	"github.com/wmeyer/sharpcgi/fcgi/fcgiwire"
)

// Logger receives a one-line diagnostic message.
type Logger func(format string, args ...any)

// Handler is the user-supplied callback invoked once per fully
// received request. It may read req.Input, mutate resp, and
// optionally close it; the dispatcher flushes headers and closes
// output on return if the handler left either open.
type Handler func(req *fcgirequest.Request, resp *fcgiresponse.Response) error

// Values answers the well-known GetValues query keys with the
// configured strings. A key absent here is omitted
// from the GetValuesResult reply rather than answered with "".
type Values struct {
	MaxConns  string // FCGI_MAX_CONNS
	MaxReqs   string // FCGI_MAX_REQS
	MpxsConns string // FCGI_MPXS_CONNS
}

func (v Values) lookup(key string) (string, bool) {
	switch key {
	case "FCGI_MAX_CONNS":
		if v.MaxConns == "" {
			return "", false
		}
		return v.MaxConns, true
	case "FCGI_MAX_REQS":
		if v.MaxReqs == "" {
			return "", false
		}
		return v.MaxReqs, true
	case "FCGI_MPXS_CONNS":
		if v.MpxsConns == "" {
			return "", false
		}
		return v.MpxsConns, true
	default:
		return "", false
	}
}

// Config carries the per-connection behavior the accept loop wires in
// from server.Config.
type Config struct {
	Multiplex              bool
	PropagateHandlerErrors bool // zero value catches errors/panics; set true to let them propagate
	TraceRequestHeaders    bool
	TraceResponseHeaders   bool
	VariableEncoding       encoding.Encoding
	Values                 Values
	ErrorLog, TraceLog     Logger
	MailboxSize            int // multiplex only; 0 defaults to 64
}

// Conn owns one accepted connection's shared, mutable state: the
// serialized write path, so only one goroutine ever writes to the
// socket at a time. It keeps no connection-level closed flag; the only
// closed flags are the per-request ones each Response carries.
type Conn struct {
	rw      io.ReadWriter
	writeMu sync.Mutex

	cfg     Config
	handler Handler
}

// New wraps rw as one FastCGI connection driven by handler under cfg.
func New(rw io.ReadWriter, cfg Config, handler Handler) *Conn {
	if cfg.ErrorLog == nil {
		cfg.ErrorLog = func(string, ...any) {}
	}
	if cfg.TraceLog == nil {
		cfg.TraceLog = func(string, ...any) {}
	}
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = 64
	}
	return &Conn{rw: rw, cfg: cfg, handler: handler}
}

// Serve reads and dispatches records until the connection ends. It
// never returns an error the caller need act on beyond
// closing the socket; all protocol/framing failures are logged
// internally and simply end the loop.
func (c *Conn) Serve() {
	if c.cfg.Multiplex {
		c.serveMultiplexed()
		return
	}
	c.serveSequential()
}

// writer returns an io.Writer that serializes each complete record
// write against every other writer created from this Conn, so
// concurrent Response.Put calls (multiplex mode, one handler goroutine
// per request) never interleave partial records on the wire.
func (c *Conn) writer() io.Writer {
	return &lockedWriter{mu: &c.writeMu, w: c.rw}
}

type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}

// replyGetValues answers a GetValues management record inline: only
// the well-known keys the config actually has a value for are echoed
// back; keys the config leaves blank are simply omitted from the reply.
func (c *Conn) replyGetValues(rec fcgiwire.Record) error {
	queried := fcgiwire.DecodeNVPairs(rec.Content, nil)
	var reply []fcgiwire.Pair
	for _, q := range queried {
		if v, ok := c.cfg.Values.lookup(q.Name); ok {
			reply = append(reply, fcgiwire.Pair{Name: q.Name, Value: v})
		}
	}
	return fcgistream.Send(c.writer(), fcgiwire.TypeGetValuesResult, fcgiwire.NullRequestID, fcgiwire.EncodeNVPairs(reply))
}

// replyUnknownType answers any record type outside the eleven defined
// FastCGI types.
func (c *Conn) replyUnknownType(originalType uint8) error {
	body := fcgiwire.EncodeUnknownTypeBody(originalType)
	return fcgistream.Send(c.writer(), fcgiwire.TypeUnknownType, fcgiwire.NullRequestID, body)
}

// isKnownType reports whether t is one of the eleven defined FastCGI
// record types; anything else gets an UnknownType reply.
func isKnownType(t fcgiwire.Type) bool {
	return t >= fcgiwire.TypeBeginRequest && t <= fcgiwire.TypeUnknownType
}

// callHandler runs the handler. By default (PropagateHandlerErrors
// false) a panicking or error-returning handler is logged and treated
// as a normal completion; setting PropagateHandlerErrors lets the
// panic/error propagate to the caller instead.
func (c *Conn) callHandler(req *fcgirequest.Request, resp *fcgiresponse.Response) (err error) {
	if !c.cfg.PropagateHandlerErrors {
		defer func() {
			if p := recover(); p != nil {
				c.cfg.ErrorLog("fcgiconn: handler panic for request %d: %v", req.ID, p)
				err = nil
			}
		}()
	}
	err = c.handler(req, resp)
	if err != nil {
		if !c.cfg.PropagateHandlerErrors {
			c.cfg.ErrorLog("fcgiconn: handler error for request %d: %v", req.ID, err)
			return nil
		}
		return err
	}
	return nil
}

// finish flushes headers if unsent and closes output if still open.
func finish(resp *fcgiresponse.Response) error {
	if resp.Closed() {
		return nil
	}
	return resp.Close(0, fcgiwire.StatusRequestComplete)
}
