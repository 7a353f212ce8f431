// Package fcgirequest builds the Request view of a FastCGI request:
// decoded CGI variables, canonicalized HTTP headers, parsed cookies,
// and CGI-style convenience accessors.
package fcgirequest

import (
	"net"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"

	"github.com/wmeyer/sharpcgi/fcgi/fcgicookie"
	"github.com/wmeyer/sharpcgi/fcgi/fcgistate"
	"github.com/wmeyer/sharpcgi/fcgi/fcgiwire"
)

// HeaderEntry is one derived header: its classification and the raw
// value carried by the matching HTTP_* variable.
type HeaderEntry struct {
	Kind  HeaderKind
	Value string
}

// Request is constructed once the terminating empty Params record
// arrives. It never changes after construction: no new
// variables are added once decoding is complete.
type Request struct {
	ID        uint16
	Variables map[string]string
	Headers   map[string]HeaderEntry // keyed by canonical header name, e.g. "Accept", "X-Custom-Header"
	Cookies   map[string]fcgicookie.Cookie

	Input *Input

	closed *fcgistate.ClosedFlag
}

// New decodes paramsBuf (the concatenation of every Params record's
// content for this request) into a Request. enc decodes the raw
// name/value bytes; nil defaults to UTF-8.
func New(id uint16, paramsBuf []byte, enc encoding.Encoding, input *Input, closed *fcgistate.ClosedFlag) *Request {
	pairs := fcgiwire.DecodeNVPairs(paramsBuf, enc)

	variables := make(map[string]string, len(pairs))
	for _, p := range pairs {
		variables[p.Name] = p.Value // last write wins on duplicates
	}

	headers := make(map[string]HeaderEntry)
	for name, value := range variables {
		suffix, ok := strings.CutPrefix(name, "HTTP_")
		if !ok {
			continue
		}
		kind, canonical := classifyHeader(suffix)
		headers[canonical] = HeaderEntry{Kind: kind, Value: value}
	}

	cookies := make(map[string]fcgicookie.Cookie)
	for _, h := range headers {
		if h.Kind != HeaderCookie {
			continue
		}
		for _, c := range fcgicookie.Parse(h.Value) {
			cookies[c.Name] = c // last one wins on duplicates
		}
	}

	return &Request{
		ID:        id,
		Variables: variables,
		Headers:   headers,
		Cookies:   cookies,
		Input:     input,
		closed:    closed,
	}
}

// Completed reports whether the paired response has been closed.
func (r *Request) Completed() bool {
	return r.closed.IsClosed()
}

// Variable returns a raw CGI variable, or false if absent.
func (r *Request) Variable(name string) (string, bool) {
	v, ok := r.Variables[name]
	return v, ok
}

// Header returns a derived header's raw value by its canonical name
// ("Accept-Charset", "X-Custom-Header", ...), or false if absent.
func (r *Request) Header(canonicalName string) (string, bool) {
	h, ok := r.Headers[canonicalName]
	if !ok {
		return "", false
	}
	return h.Value, true
}

// Method returns REQUEST_METHOD, or "" if absent.
func (r *Request) Method() string {
	return r.Variables["REQUEST_METHOD"]
}

// QueryString returns QUERY_STRING, or "" if absent.
func (r *Request) QueryString() string {
	return r.Variables["QUERY_STRING"]
}

// ScriptName returns SCRIPT_NAME, or "" if absent.
func (r *Request) ScriptName() string {
	return r.Variables["SCRIPT_NAME"]
}

// ServerPort parses SERVER_PORT. Malformed or absent values return
// (0, false) rather than an error.
func (r *Request) ServerPort() (int, bool) {
	v, ok := r.Variables["SERVER_PORT"]
	if !ok {
		return 0, false
	}
	port, err := strconv.Atoi(v)
	if err != nil || port < 0 || port > 65535 {
		return 0, false
	}
	return port, true
}

// RemoteAddr parses REMOTE_ADDR. Malformed or absent values return
// (nil, false) rather than an error.
func (r *Request) RemoteAddr() (net.IP, bool) {
	v, ok := r.Variables["REMOTE_ADDR"]
	if !ok {
		return nil, false
	}
	ip := net.ParseIP(v)
	if ip == nil {
		return nil, false
	}
	return ip, true
}

// ContentLength parses CONTENT_LENGTH. Malformed or absent values
// return (0, false) rather than an error.
func (r *Request) ContentLength() (int, bool) {
	v, ok := r.Variables["CONTENT_LENGTH"]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ContentType returns CONTENT_TYPE, or false if absent.
func (r *Request) ContentType() (string, bool) {
	v, ok := r.Variables["CONTENT_TYPE"]
	return v, ok
}
