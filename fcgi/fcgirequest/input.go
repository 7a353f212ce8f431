package fcgirequest

import (
	"context"
	"errors"
	"sync"

	"github.com/wmeyer/sharpcgi/fcgi/fcgistate"
	"github.com/wmeyer/sharpcgi/fcgi/fcgiwire"
)

// ErrOutputAlreadyClosed is returned by Get/GetAll once the paired
// response has been closed: request and response lifetimes are tied
// together, so a closed response discards any unread input.
var ErrOutputAlreadyClosed = errors.New("fcgirequest: output already closed")

// RecordSource supplies the raw records addressed to one request, in
// arrival order. In sequential mode it reads the shared connection
// stream directly; in multiplexed mode it drains a per-request agent
// mailbox.
type RecordSource interface {
	NextRecord(ctx context.Context) (fcgiwire.Record, error)
}

// LogFunc receives a one-line diagnostic message.
type LogFunc func(format string, args ...any)

// Input is the pull-style byte source backing Request.Input. Bytes
// arrive as Stdin records are pulled from source on demand; Get
// never returns fewer than requested bytes unless end-of-input has
// been reached.
type Input struct {
	mu      sync.Mutex
	buf     []byte
	offset  int
	allRead bool

	source RecordSource
	closed *fcgistate.ClosedFlag
	logf   LogFunc
}

// NewInput builds an Input pulling records from source, deferring to
// closed to reject reads once the paired response is closed.
func NewInput(source RecordSource, closed *fcgistate.ClosedFlag, logf LogFunc) *Input {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Input{source: source, closed: closed, logf: logf}
}

// Get returns up to n bytes. If the buffer already holds n unread
// bytes it returns immediately; otherwise it pulls further Stdin
// records until either n bytes are available or end-of-input arrives,
// in which case it returns whatever remains (possibly zero bytes).
func (in *Input) Get(ctx context.Context, n int) ([]byte, error) {
	if in.closed.IsClosed() {
		return nil, ErrOutputAlreadyClosed
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	for in.unreadLocked() < n && !in.allRead {
		if err := in.pullOneLocked(ctx); err != nil {
			return nil, err
		}
	}
	return in.takeLocked(n), nil
}

// GetAll pulls records until end-of-input, then returns every unread
// byte.
func (in *Input) GetAll(ctx context.Context) ([]byte, error) {
	if in.closed.IsClosed() {
		return nil, ErrOutputAlreadyClosed
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	for !in.allRead {
		if err := in.pullOneLocked(ctx); err != nil {
			return nil, err
		}
	}
	return in.takeLocked(in.unreadLocked()), nil
}

func (in *Input) unreadLocked() int {
	return len(in.buf) - in.offset
}

func (in *Input) takeLocked(n int) []byte {
	avail := in.unreadLocked()
	if n > avail {
		n = avail
	}
	out := make([]byte, n)
	copy(out, in.buf[in.offset:in.offset+n])
	in.offset += n
	return out
}

// pullOneLocked pulls one record from source, appending its content
// if it's a non-empty Stdin record, marking allRead on an empty
// Stdin record, or logging and skipping any other record type
// (defense-in-depth: the dispatcher should never route a non-Stdin
// record here).
func (in *Input) pullOneLocked(ctx context.Context) error {
	for {
		rec, err := in.source.NextRecord(ctx)
		if err != nil {
			return err
		}
		if rec.Header.Type != fcgiwire.TypeStdin {
			in.logf("fcgirequest: dropping unexpected %v record while reading stdin", rec.Header.Type)
			continue
		}
		if len(rec.Content) == 0 {
			in.allRead = true
			return nil
		}
		in.buf = append(in.buf, rec.Content...)
		return nil
	}
}
