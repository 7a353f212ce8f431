// Package tcpproxy is a small transparent TCP relay with a
// pluggable decode-and-log hook on each direction, used by
// cmd/fcgidump to watch FastCGI traffic between an upstream server
// and a responder without altering it.
package tcpproxy

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
)

// Pipe reads a full message with Reader, logs it (optionally
// decoded via Decoder), then writes it back out with Writer.
type Pipe[T any] struct {
	Reader  func(r io.Reader) (T, error)
	Writer  func(w io.Writer, data T) error
	Decoder func(data T) (any, error)
	Logger  *log.Logger
}

// Run executes one read-log-write cycle, tagging log lines with
// prefix ("request"/"response").
func (p *Pipe[T]) Run(r io.Reader, w io.Writer, prefix string) error {
	data, err := p.Reader(r)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", prefix, err)
	}

	if raw, err := json.Marshal(data); err == nil {
		p.Logger.Println(prefix, "read raw", string(raw))
	}

	if p.Decoder != nil {
		decoded, err := p.Decoder(data)
		if err != nil {
			return fmt.Errorf("cannot decode %s: %w", prefix, err)
		}
		if pretty, err := json.Marshal(decoded); err == nil {
			p.Logger.Println("decoded", prefix, string(pretty))
		}
	}

	p.Logger.Println("writing back", prefix)
	return p.Writer(w, data)
}
