package fcgiconn

import (
	"context"
	"errors"
	"sync"

	"github.com/wmeyer/sharpcgi/fcgi/fcgirequest"
	"github.com/wmeyer/sharpcgi/fcgi/fcgiresponse"
	"github.com/wmeyer/sharpcgi/fcgi/fcgistate"
	"github.com/wmeyer/sharpcgi/fcgi/fcgistream"
	"github.com/wmeyer/sharpcgi/fcgi/fcgiwire"
)

// agent is one request's inbox: a single-producer (the dispatcher),
// single-consumer (the request's own goroutine, via its Input)
// bounded mailbox. The bound applies backpressure to a misbehaving
// upstream server rather than growing without limit, while never
// dropping a record addressed to a known id.
type agent struct {
	mailbox chan fcgiwire.Record
}

func newAgent(size int) *agent {
	return &agent{mailbox: make(chan fcgiwire.Record, size)}
}

func (a *agent) NextRecord(ctx context.Context) (fcgiwire.Record, error) {
	select {
	case rec, ok := <-a.mailbox:
		if !ok {
			return fcgiwire.Record{}, fcgistream.ErrNoData
		}
		return rec, nil
	case <-ctx.Done():
		return fcgiwire.Record{}, ctx.Err()
	}
}

// serveMultiplexed implements the dispatcher half of multiplexed
// mode: it owns the socket read loop and a request_id -> agent table,
// routing Params/Stdin/AbortRequest to the matching agent's mailbox
// and answering management records inline. Each agent's
// AwaitParams -> InHandler -> Done sub-state machine runs on its own
// goroutine in runAgent.
func (c *Conn) serveMultiplexed() {
	var (
		mu     sync.Mutex
		agents = make(map[uint16]*agent)
		wg     sync.WaitGroup
	)

	for {
		rec, err := fcgistream.Recv(c.rw)
		if err != nil {
			if !errors.Is(err, fcgistream.ErrNoData) {
				c.cfg.ErrorLog("fcgiconn: framing error, closing connection: %v", err)
			}
			break
		}

		switch {
		case rec.Header.Type == fcgiwire.TypeGetValues:
			if err := c.replyGetValues(rec); err != nil {
				c.cfg.ErrorLog("fcgiconn: failed to reply to GetValues: %v", err)
			}

		case !isKnownType(rec.Header.Type):
			if err := c.replyUnknownType(byte(rec.Header.Type)); err != nil {
				c.cfg.ErrorLog("fcgiconn: failed to reply UnknownType: %v", err)
			}

		case rec.Header.Type == fcgiwire.TypeBeginRequest:
			id := rec.Header.RequestID
			a := newAgent(c.cfg.MailboxSize)
			mu.Lock()
			agents[id] = a
			mu.Unlock()

			wg.Add(1)
			go func() {
				defer wg.Done()
				c.runAgent(id, a)
				mu.Lock()
				delete(agents, id)
				mu.Unlock()
			}()

		case rec.Header.Type == fcgiwire.TypeParams,
			rec.Header.Type == fcgiwire.TypeStdin,
			rec.Header.Type == fcgiwire.TypeAbortRequest:
			mu.Lock()
			a, ok := agents[rec.Header.RequestID]
			mu.Unlock()
			if !ok {
				c.cfg.ErrorLog("fcgiconn: %v record for unknown request %d, dropping", rec.Header.Type, rec.Header.RequestID)
				continue
			}
			a.mailbox <- rec

		default:
			c.cfg.ErrorLog("fcgiconn: unexpected %v record in multiplexed mode, ignoring", rec.Header.Type)
		}
	}

	// Any agent still waiting on its mailbox (blocked in awaitParams or
	// mid-handler reading Stdin) would otherwise block wg.Wait forever
	// once the peer is gone. Closing every live mailbox unblocks
	// NextRecord's closed-channel branch without losing already
	// buffered records: a closed channel still drains before reporting
	// closed.
	mu.Lock()
	for _, a := range agents {
		close(a.mailbox)
	}
	mu.Unlock()

	wg.Wait()
}

// runAgent accumulates one request's Params, then runs the handler to
// completion. It never returns an error; failures are logged and end
// this agent without affecting the rest of the connection.
func (c *Conn) runAgent(id uint16, a *agent) {
	params, ok := c.awaitParams(id, a)
	if !ok {
		return
	}

	closed := &fcgistate.ClosedFlag{}
	resp := fcgiresponse.New(id, c.writer(), closed)
	input := fcgirequest.NewInput(a, closed, fcgirequest.LogFunc(c.cfg.TraceLog))
	req := fcgirequest.New(id, params, c.cfg.VariableEncoding, input, closed)

	if err := c.callHandler(req, resp); err != nil {
		c.cfg.ErrorLog("fcgiconn: request %d handler error: %v", id, err)
		return
	}
	if err := finish(resp); err != nil {
		c.cfg.ErrorLog("fcgiconn: failed to finish request %d: %v", id, err)
	}
}

// awaitParams drains a's mailbox until the terminating empty Params
// record, returning the accumulated buffer. It reports false if the
// request was aborted or its mailbox closed before completion.
func (c *Conn) awaitParams(id uint16, a *agent) ([]byte, bool) {
	var params []byte
	for {
		rec, err := a.NextRecord(context.Background())
		if err != nil {
			c.cfg.ErrorLog("fcgiconn: request %d ended before params completed: %v", id, err)
			return nil, false
		}
		switch rec.Header.Type {
		case fcgiwire.TypeParams:
			if len(rec.Content) > 0 {
				params = append(params, rec.Content...)
				continue
			}
			return params, true
		case fcgiwire.TypeAbortRequest:
			c.cfg.TraceLog("fcgiconn: request %d aborted before params completed", id)
			return nil, false
		default:
			c.cfg.ErrorLog("fcgiconn: unexpected %v record awaiting params for request %d, ignoring", rec.Header.Type, id)
		}
	}
}
