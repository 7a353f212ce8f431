package fcgistream

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/wmeyer/sharpcgi/fcgi/fcgiwire"
)

// chunkedReader splits Read calls into pieces no larger than size,
// simulating a TCP stream that delivers a record's bytes in several
// reads regardless of where record boundaries fall.
type chunkedReader struct {
	buf  []byte
	size int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(c.buf) == 0 {
		return 0, io.EOF
	}
	n := c.size
	if n > len(p) {
		n = len(p)
	}
	if n > len(c.buf) {
		n = len(c.buf)
	}
	copy(p, c.buf[:n])
	c.buf = c.buf[n:]
	return n, nil
}

func encodeRecordBytes(t fcgiwire.Type, id uint16, content []byte) []byte {
	var buf bytes.Buffer
	h := fcgiwire.EncodeHeader(fcgiwire.NewHeader(t, id, len(content)))
	buf.Write(h[:])
	buf.Write(content)
	return buf.Bytes()
}

func TestRecvIndependentOfReadBoundaries(t *testing.T) {
	wire := encodeRecordBytes(fcgiwire.TypeParams, 1, []byte("HTTP_HOST=example.com"))
	wire = append(wire, encodeRecordBytes(fcgiwire.TypeParams, 1, nil)...)

	for size := 1; size <= len(wire); size++ {
		r := &chunkedReader{buf: append([]byte(nil), wire...), size: size}

		rec1, err := Recv(r)
		if err != nil {
			t.Fatalf("split size %d: first Recv error: %v", size, err)
		}
		if rec1.Header.Type != fcgiwire.TypeParams || string(rec1.Content) != "HTTP_HOST=example.com" {
			t.Fatalf("split size %d: unexpected first record %#v", size, rec1)
		}

		rec2, err := Recv(r)
		if err != nil {
			t.Fatalf("split size %d: second Recv error: %v", size, err)
		}
		if len(rec2.Content) != 0 {
			t.Fatalf("split size %d: expected empty terminator, got %d bytes", size, len(rec2.Content))
		}

		if _, err := Recv(r); !errors.Is(err, ErrNoData) {
			t.Fatalf("split size %d: expected ErrNoData at end of stream, got %v", size, err)
		}
	}
}

func TestRecvShortHeaderIsNoData(t *testing.T) {
	r := bytes.NewReader([]byte{1, 2, 3})
	if _, err := Recv(r); !errors.Is(err, ErrNoData) {
		t.Fatalf("want ErrNoData, got %v", err)
	}
}

func TestRecvShortContentIsNoData(t *testing.T) {
	h := fcgiwire.EncodeHeader(fcgiwire.NewHeader(fcgiwire.TypeStdin, 1, 100))
	r := bytes.NewReader(append(h[:], []byte("not enough bytes")...))
	if _, err := Recv(r); !errors.Is(err, ErrNoData) {
		t.Fatalf("want ErrNoData, got %v", err)
	}
}

func TestRecvUnknownVersion(t *testing.T) {
	h := fcgiwire.EncodeHeader(fcgiwire.NewHeader(fcgiwire.TypeStdin, 1, 0))
	h[0] = 9
	r := bytes.NewReader(h[:])
	if _, err := Recv(r); !errors.Is(err, fcgiwire.ErrUnknownVersion) {
		t.Fatalf("want ErrUnknownVersion, got %v", err)
	}
}

func TestRecvStripsPadding(t *testing.T) {
	var raw bytes.Buffer
	h := fcgiwire.NewHeader(fcgiwire.TypeStdout, 1, 3)
	h.PaddingLength = 5
	hb := fcgiwire.EncodeHeader(h)
	raw.Write(hb[:])
	raw.WriteString("abc")
	raw.Write(make([]byte, 5))

	rec, err := Recv(&raw)
	if err != nil {
		t.Fatalf("Recv error: %v", err)
	}
	if string(rec.Content) != "abc" {
		t.Fatalf("want content \"abc\", got %q", rec.Content)
	}
}

func TestSendBufferFragmentsAtMaxContentLen(t *testing.T) {
	data := bytes.Repeat([]byte("x"), fcgiwire.MaxContentLen+1)
	var out bytes.Buffer

	if err := SendBuffer(&out, 1, data, 0, len(data)); err != nil {
		t.Fatalf("SendBuffer error: %v", err)
	}

	r := &out
	rec1, err := Recv(r)
	if err != nil {
		t.Fatalf("first Recv error: %v", err)
	}
	if len(rec1.Content) != fcgiwire.MaxContentLen {
		t.Fatalf("first record: want %d bytes, got %d", fcgiwire.MaxContentLen, len(rec1.Content))
	}

	rec2, err := Recv(r)
	if err != nil {
		t.Fatalf("second Recv error: %v", err)
	}
	if len(rec2.Content) != 1 {
		t.Fatalf("second record: want 1 byte, got %d", len(rec2.Content))
	}
}

func TestSendBufferZeroLengthProducesNoRecords(t *testing.T) {
	var out bytes.Buffer
	if err := SendBuffer(&out, 1, nil, 0, 0); err != nil {
		t.Fatalf("SendBuffer error: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("want no bytes written, got %d", out.Len())
	}
}
