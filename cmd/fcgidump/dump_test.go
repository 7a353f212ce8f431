package main

import (
	"bytes"
	"testing"

	"github.com/wmeyer/sharpcgi/fcgi/fcgiwire"
	"github.com/wmeyer/sharpcgi/pkg/autoinc"
)

func encodeRecord(t fcgiwire.Type, id uint16, content []byte) []byte {
	h := fcgiwire.EncodeHeader(fcgiwire.NewHeader(t, id, len(content)))
	var buf bytes.Buffer
	buf.Write(h[:])
	buf.Write(content)
	return buf.Bytes()
}

func TestReadRequestStopsAtEmptyStdin(t *testing.T) {
	var wire bytes.Buffer
	wire.Write(encodeRecord(fcgiwire.TypeBeginRequest, 1, []byte{0, 1, 1, 0, 0, 0, 0, 0}))
	wire.Write(encodeRecord(fcgiwire.TypeParams, 1, nil))
	wire.Write(encodeRecord(fcgiwire.TypeStdin, 1, []byte("body")))
	wire.Write(encodeRecord(fcgiwire.TypeStdin, 1, nil))
	firstRequest := append([]byte(nil), wire.Bytes()...)
	// Bytes belonging to a hypothetical next request must be left unread.
	trailing := encodeRecord(fcgiwire.TypeBeginRequest, 2, []byte{0, 1, 1, 0, 0, 0, 0, 0})
	wire.Write(trailing)

	f, err := readRequest(&wire)
	if err != nil {
		t.Fatalf("readRequest: %v", err)
	}
	if len(f.Records) != 4 {
		t.Fatalf("want 4 records, got %d", len(f.Records))
	}
	if !bytes.Equal(f.Raw, firstRequest) {
		t.Errorf("want raw bytes to exclude trailing request")
	}
	if !bytes.Equal(wire.Bytes(), trailing) {
		t.Errorf("want exactly the trailing request left unread, got %d bytes remaining", wire.Len())
	}
}

func TestReadResponseStopsAtEndRequest(t *testing.T) {
	var wire bytes.Buffer
	wire.Write(encodeRecord(fcgiwire.TypeStdout, 1, []byte("ok")))
	wire.Write(encodeRecord(fcgiwire.TypeStdout, 1, nil))
	wire.Write(encodeRecord(fcgiwire.TypeEndRequest, 1, fcgiwire.EncodeEndRequestBody(0, fcgiwire.StatusRequestComplete)))
	sent := append([]byte(nil), wire.Bytes()...)

	f, err := readResponse(&wire)
	if err != nil {
		t.Fatalf("readResponse: %v", err)
	}
	if len(f.Records) != 3 {
		t.Fatalf("want 3 records, got %d", len(f.Records))
	}
	if !bytes.Equal(f.Raw, sent) {
		t.Errorf("want every byte captured for replay")
	}
}

func TestSummarizeOneLinePerRecord(t *testing.T) {
	f := frame{Records: []fcgiwire.Record{
		{Header: fcgiwire.Header{Type: fcgiwire.TypeStdout, RequestID: 1}, Content: []byte("hi")},
	}}
	lines, err := summarize(f)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	got, ok := lines.([]string)
	if !ok || len(got) != 1 || got[0] != "Stdout id=1 len=2" {
		t.Fatalf("want one summary line, got %#v", lines)
	}
}

func TestNumberedSummarySharesCounterAcrossCalls(t *testing.T) {
	var seq autoinc.AutoInc[uint64]
	decode := numberedSummary(&seq)
	f := frame{Records: []fcgiwire.Record{
		{Header: fcgiwire.Header{Type: fcgiwire.TypeStdout, RequestID: 1}, Content: []byte("hi")},
	}}

	first, err := decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	second, err := decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	firstLines := first.([]string)
	secondLines := second.([]string)
	if firstLines[0] != "#1 Stdout id=1 len=2" {
		t.Errorf("want first call numbered #1, got %q", firstLines[0])
	}
	if secondLines[0] != "#2 Stdout id=1 len=2" {
		t.Errorf("want second call numbered #2, got %q", secondLines[0])
	}
}
