package fcgiconn

import (
	"context"
	"errors"

	"github.com/wmeyer/sharpcgi/fcgi/fcgirequest"
	"github.com/wmeyer/sharpcgi/fcgi/fcgiresponse"
	"github.com/wmeyer/sharpcgi/fcgi/fcgistate"
	"github.com/wmeyer/sharpcgi/fcgi/fcgistream"
	"github.com/wmeyer/sharpcgi/fcgi/fcgiwire"
)

// seqSource pulls records directly off the connection's socket for
// the one request currently being served, answering management
// records inline as they arrive rather than making the input buffer
// drop them. GetValues and unknown-type records get replied to
// regardless of the current AwaitParams/InHandler state, even while a
// handler is blocked reading Stdin.
type seqSource struct {
	c *Conn
}

func (s *seqSource) NextRecord(ctx context.Context) (fcgiwire.Record, error) {
	for {
		rec, err := fcgistream.Recv(s.c.rw)
		if err != nil {
			return fcgiwire.Record{}, err
		}
		switch {
		case rec.Header.Type == fcgiwire.TypeGetValues:
			if err := s.c.replyGetValues(rec); err != nil {
				return fcgiwire.Record{}, err
			}
			continue
		case !isKnownType(rec.Header.Type):
			if err := s.c.replyUnknownType(byte(rec.Header.Type)); err != nil {
				return fcgiwire.Record{}, err
			}
			continue
		default:
			return rec, nil
		}
	}
}

// serveSequential implements the Idle -> AwaitParams -> InHandler ->
// Idle state machine for a non-multiplexed connection.
func (c *Conn) serveSequential() {
	src := &seqSource{c: c}

	for {
		rec, err := src.NextRecord(context.Background())
		if err != nil {
			if errors.Is(err, fcgistream.ErrNoData) {
				return
			}
			c.cfg.ErrorLog("fcgiconn: framing error, closing connection: %v", err)
			return
		}

		if rec.Header.Type != fcgiwire.TypeBeginRequest {
			c.cfg.ErrorLog("fcgiconn: unexpected %v record with no active request, ignoring", rec.Header.Type)
			continue
		}

		begin, ok := fcgiwire.DecodeBeginRequestBody(rec.Content)
		if !ok {
			c.cfg.ErrorLog("fcgiconn: malformed BeginRequest (%d bytes), dropping", len(rec.Content))
			continue
		}
		requestID := rec.Header.RequestID
		keepConn := begin.KeepConn()

		if !c.awaitParamsAndServe(src, requestID) {
			return
		}
		if !keepConn {
			return
		}
	}
}

// awaitParamsAndServe accumulates Params content until the terminating
// empty Params record, then runs the request to completion. It
// reports whether the connection should keep accepting further
// requests.
func (c *Conn) awaitParamsAndServe(src *seqSource, requestID uint16) bool {
	var params []byte
	for {
		rec, err := src.NextRecord(context.Background())
		if err != nil {
			if errors.Is(err, fcgistream.ErrNoData) {
				return false
			}
			c.cfg.ErrorLog("fcgiconn: framing error mid-request, closing connection: %v", err)
			return false
		}

		switch rec.Header.Type {
		case fcgiwire.TypeParams:
			if len(rec.Content) > 0 {
				params = append(params, rec.Content...)
				continue
			}
			return c.runRequest(src, requestID, params)
		case fcgiwire.TypeStdin:
			c.cfg.ErrorLog("fcgiconn: Stdin arrived before Params completed for request %d, ignoring", requestID)
		default:
			c.cfg.ErrorLog("fcgiconn: unexpected %v record awaiting params for request %d, ignoring", rec.Header.Type, requestID)
		}
	}
}

func (c *Conn) runRequest(src *seqSource, requestID uint16, params []byte) bool {
	closed := &fcgistate.ClosedFlag{}
	resp := fcgiresponse.New(requestID, c.writer(), closed)
	input := fcgirequest.NewInput(src, closed, fcgirequest.LogFunc(c.cfg.TraceLog))
	req := fcgirequest.New(requestID, params, c.cfg.VariableEncoding, input, closed)

	if err := c.callHandler(req, resp); err != nil {
		c.cfg.ErrorLog("fcgiconn: request %d terminated connection: %v", requestID, err)
		return false
	}
	if err := finish(resp); err != nil {
		c.cfg.ErrorLog("fcgiconn: failed to finish request %d: %v", requestID, err)
		return false
	}
	return true
}
