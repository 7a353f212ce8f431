// Package fcgistream turns an abstract byte stream into a lazy
// sequence of complete FastCGI records (and back), handling partial
// reads, padding, and record-size fragmentation transparently.
package fcgistream

import (
	"errors"
	"io"

	"github.com/valyala/bytebufferpool"

	"github.com/wmeyer/sharpcgi/fcgi/fcgiwire"
)

// ErrNoData is returned by Recv when the peer closed the connection
// cleanly at a record boundary, or a read returned zero bytes. It is
// not an error condition the dispatcher logs; it means "nothing more
// is coming."
var ErrNoData = errors.New("fcgistream: no data")

// Recv reads exactly one record from r.
//
//   - A short read of the 8-byte header yields ErrNoData.
//   - A short read of content or padding yields ErrNoData: the peer
//     went away mid-record, which downstream treats the same as a
//     clean close since nothing usable was received.
//   - A header whose version isn't 1 yields fcgiwire.ErrUnknownVersion,
//     which is fatal to the connection (framing is unrecoverable once
//     a header can't be trusted).
//
// Recv never returns a Record whose Content length mismatches its
// Header.ContentLength.
func Recv(r io.Reader) (fcgiwire.Record, error) {
	var hb [fcgiwire.HeaderLen]byte
	if _, err := io.ReadFull(r, hb[:]); err != nil {
		return fcgiwire.Record{}, ErrNoData
	}

	h, err := fcgiwire.DecodeHeader(hb)
	if err != nil {
		return fcgiwire.Record{}, err
	}

	n := int(h.ContentLength) + int(h.PaddingLength)
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return fcgiwire.Record{}, ErrNoData
	}

	return fcgiwire.Record{Header: h, Content: buf[:h.ContentLength]}, nil
}

// Send writes one record: header then content, with zero padding.
// The caller must serialize concurrent calls to Send on the same
// writer: only one write should be in flight per connection at a time.
func Send(w io.Writer, t fcgiwire.Type, requestID uint16, content []byte) error {
	if len(content) > fcgiwire.MaxContentLen {
		return errors.New("fcgistream: content exceeds max record length")
	}
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	h := fcgiwire.EncodeHeader(fcgiwire.NewHeader(t, requestID, len(content)))
	buf.Write(h[:])
	buf.Write(content)

	_, err := w.Write(buf.Bytes())
	return err
}

// SendBuffer fragments data into fcgiwire.TypeStdout records of up to
// fcgiwire.MaxContentLen bytes each, preserving byte order. A
// zero-length buffer produces no records: the handler signals
// end-of-stream by closing the response, which emits its own empty
// Stdout record.
func SendBuffer(w io.Writer, requestID uint16, data []byte, offset, length int) error {
	data = data[offset : offset+length]
	for len(data) > 0 {
		n := len(data)
		if n > fcgiwire.MaxContentLen {
			n = fcgiwire.MaxContentLen
		}
		if err := Send(w, fcgiwire.TypeStdout, requestID, data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}
