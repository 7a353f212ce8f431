// Package fcgiresponse implements the Response side of a FastCGI
// exchange: status, header and cookie tables, headers-sent gating,
// and the send operations that turn handler output into Stdout and
// EndRequest records.
package fcgiresponse

import (
	"errors"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/valyala/bytebufferpool"

	"github.com/wmeyer/sharpcgi/fcgi/fcgicookie"
	"github.com/wmeyer/sharpcgi/fcgi/fcgistate"
	"github.com/wmeyer/sharpcgi/fcgi/fcgistream"
	"github.com/wmeyer/sharpcgi/fcgi/fcgiwire"
)

// ErrHeadersAlreadySent is returned by any header/cookie mutation
// attempted after the header block has been flushed.
var ErrHeadersAlreadySent = errors.New("fcgiresponse: headers already sent")

// ErrOutputAlreadyClosed is returned by any send operation attempted
// after Close.
var ErrOutputAlreadyClosed = errors.New("fcgiresponse: output already closed")

const defaultContentType = "text/html; charset=utf-8"

// Response owns the mutable state of one request's reply: status,
// header and cookie tables, and the two monotonic flags that gate
// what operations remain legal.
type Response struct {
	mu sync.Mutex

	requestID uint16
	w         io.Writer // already serialized by the owning connection

	status  int
	headers map[string]string
	cookies map[string]fcgicookie.Cookie

	headersSent bool
	closed      *fcgistate.ClosedFlag
}

// New builds a Response bound to requestID, writing records to w.
// closed is the cell this Response sets when it closes; a paired
// Input should be constructed with the same cell so reads stop once
// this Response closes.
func New(requestID uint16, w io.Writer, closed *fcgistate.ClosedFlag) *Response {
	return &Response{
		requestID: requestID,
		w:         w,
		status:    200,
		headers:   map[string]string{"Content-Type": defaultContentType},
		cookies:   make(map[string]fcgicookie.Cookie),
		closed:    closed,
	}
}

// SetStatus overwrites the response status code.
func (r *Response) SetStatus(code int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.headersSent {
		return ErrHeadersAlreadySent
	}
	r.status = code
	return nil
}

// SetHeader overwrites a header entry.
func (r *Response) SetHeader(name, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.headersSent {
		return ErrHeadersAlreadySent
	}
	r.headers[name] = value
	return nil
}

// UnsetHeader removes a header entry, if present.
func (r *Response) UnsetHeader(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.headersSent {
		return ErrHeadersAlreadySent
	}
	delete(r.headers, name)
	return nil
}

// SetCookie inserts or replaces a cookie by name.
func (r *Response) SetCookie(c fcgicookie.Cookie) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.headersSent {
		return ErrHeadersAlreadySent
	}
	r.cookies[c.Name] = c
	return nil
}

// UnsetCookie replaces the named cookie with its expired form, so the
// browser clears it.
func (r *Response) UnsetCookie(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.headersSent {
		return ErrHeadersAlreadySent
	}
	r.cookies[name] = fcgicookie.Expired(name)
	return nil
}

// SendHeaders serializes and emits the header block as a single
// Stdout record, if it hasn't been sent yet. Idempotent.
func (r *Response) SendHeaders() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sendHeadersLocked()
}

func (r *Response) sendHeadersLocked() error {
	if r.closed.IsClosed() {
		return ErrOutputAlreadyClosed
	}
	if r.headersSent {
		return nil
	}
	r.headersSent = true

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.WriteString("Status: ")
	buf.WriteString(strconv.Itoa(r.status))
	buf.WriteString("\r\n")

	for name, value := range r.headers {
		if strings.EqualFold(name, "Set-Cookie") {
			continue // handled below, either as an override or from the cookie table
		}
		buf.WriteString(name)
		buf.WriteString(": ")
		buf.WriteString(value)
		buf.WriteString("\r\n")
	}

	if override, ok := lookupFold(r.headers, "Set-Cookie"); ok {
		buf.WriteString("Set-Cookie: ")
		buf.WriteString(override)
		buf.WriteString("\r\n")
	} else if len(r.cookies) > 0 {
		buf.WriteString("Set-Cookie: ")
		buf.WriteString(fcgicookie.FormatAll(sortedCookies(r.cookies)))
		buf.WriteString("\r\n")
	}

	buf.WriteString("\r\n")

	return fcgistream.Send(r.w, fcgiwire.TypeStdout, r.requestID, buf.Bytes())
}

// lookupFold finds a header by case-insensitive name.
func lookupFold(headers map[string]string, name string) (string, bool) {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// sortedCookies returns cookies in a stable, deterministic order so
// repeated serialization of the same table produces identical bytes.
func sortedCookies(cookies map[string]fcgicookie.Cookie) []fcgicookie.Cookie {
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]fcgicookie.Cookie, len(names))
	for i, name := range names {
		out[i] = cookies[name]
	}
	return out
}

// Put ensures headers have been sent, then emits body bytes.
func (r *Response) Put(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed.IsClosed() {
		return ErrOutputAlreadyClosed
	}
	if err := r.sendHeadersLocked(); err != nil {
		return err
	}
	return fcgistream.SendBuffer(r.w, r.requestID, data, 0, len(data))
}

// Close flushes headers if unsent, then emits an empty Stdout record
// and EndRequest, and marks the response permanently closed.
func (r *Response) Close(appStatus uint32, protocolStatus fcgiwire.ProtocolStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed.IsClosed() {
		return ErrOutputAlreadyClosed
	}
	if err := r.sendHeadersLocked(); err != nil {
		return err
	}
	if err := fcgistream.Send(r.w, fcgiwire.TypeStdout, r.requestID, nil); err != nil {
		return err
	}
	body := fcgiwire.EncodeEndRequestBody(appStatus, protocolStatus)
	if err := fcgistream.Send(r.w, fcgiwire.TypeEndRequest, r.requestID, body); err != nil {
		return err
	}
	r.closed.Close()
	return nil
}

// Closed reports whether Close has already run.
func (r *Response) Closed() bool {
	return r.closed.IsClosed()
}

// HeadersSent reports whether the header block has already been
// flushed.
func (r *Response) HeadersSent() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.headersSent
}
