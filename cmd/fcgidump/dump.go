// Command fcgidump sits between an upstream web server and a
// responder, relaying bytes unchanged while logging the FastCGI
// records it observes in each direction.
package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/wmeyer/sharpcgi/fcgi/fcgistream"
	"github.com/wmeyer/sharpcgi/fcgi/fcgiwire"
	"github.com/wmeyer/sharpcgi/pkg/autoinc"
)

// frame is one side's captured traffic: the exact bytes read (so they
// can be relayed byte-for-byte) plus the records decoded from them.
type frame struct {
	Raw     []byte
	Records []fcgiwire.Record
}

// readFramed reads records from r via fcgistream.Recv until stop
// reports true for one of them or the peer closes; the TeeReader
// capture means the replayed bytes are exactly what was read,
// padding included.
func readFramed(r io.Reader, stop func(fcgiwire.Record) bool) (frame, error) {
	var raw bytes.Buffer
	tee := io.TeeReader(r, &raw)

	var recs []fcgiwire.Record
	for {
		rec, err := fcgistream.Recv(tee)
		if err != nil {
			if errors.Is(err, fcgistream.ErrNoData) {
				break
			}
			return frame{}, err
		}
		recs = append(recs, rec)
		if stop(rec) {
			break
		}
	}
	return frame{Raw: raw.Bytes(), Records: recs}, nil
}

// readRequest captures a full request: BeginRequest, the Params run
// up to its empty terminator, and Stdin records up to and including
// the empty one that marks end-of-body.
func readRequest(r io.Reader) (frame, error) {
	return readFramed(r, func(rec fcgiwire.Record) bool {
		return rec.Header.Type == fcgiwire.TypeStdin && len(rec.Content) == 0
	})
}

// readResponse captures a full response: Stdout/Stderr records up to
// and including EndRequest.
func readResponse(r io.Reader) (frame, error) {
	return readFramed(r, func(rec fcgiwire.Record) bool {
		return rec.Header.Type == fcgiwire.TypeEndRequest
	})
}

func writeFrame(w io.Writer, f frame) error {
	_, err := w.Write(f.Raw)
	return err
}

// summarize renders one line per record for the decoded-view log.
func summarize(f frame) (any, error) {
	lines := make([]string, len(f.Records))
	for i, rec := range f.Records {
		lines[i] = fmt.Sprintf("%s id=%d len=%d", rec.Header.Type, rec.Header.RequestID, len(rec.Content))
	}
	return lines, nil
}

// numberedSummary wraps summarize with a shared counter so log lines
// from both directions carry a single frame sequence number,
// making interleaved request/response traffic easy to reorder by eye.
func numberedSummary(seq *autoinc.AutoInc[uint64]) func(frame) (any, error) {
	return func(f frame) (any, error) {
		lines, err := summarize(f)
		if err != nil {
			return nil, err
		}
		n := seq.Get()
		numbered := make([]string, len(lines.([]string)))
		for i, line := range lines.([]string) {
			numbered[i] = fmt.Sprintf("#%d %s", n, line)
		}
		return numbered, nil
	}
}
