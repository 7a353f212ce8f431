// Package fcgistate holds the tiny shared primitives that break the
// Request<->Response reference cycle, so neither object needs to
// import the other.
package fcgistate

import "sync/atomic"

// ClosedFlag is a shared cell a Response sets once and an Input
// buffer only ever reads. It replaces holding a full *Response
// reference just to ask "has output been closed yet?"
type ClosedFlag struct {
	closed atomic.Bool
}

// Close marks the flag closed. Monotonic: false -> true only.
func (f *ClosedFlag) Close() {
	f.closed.Store(true)
}

// IsClosed reports the current state.
func (f *ClosedFlag) IsClosed() bool {
	return f.closed.Load()
}
