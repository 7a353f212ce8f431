package fcgirequest

import (
	"context"
	"errors"
	"testing"

	"github.com/wmeyer/sharpcgi/fcgi/fcgistate"
	"github.com/wmeyer/sharpcgi/fcgi/fcgiwire"
)

type fakeSource struct {
	records []fcgiwire.Record
	pos     int
	err     error
}

func (s *fakeSource) NextRecord(ctx context.Context) (fcgiwire.Record, error) {
	if s.pos >= len(s.records) {
		if s.err != nil {
			return fcgiwire.Record{}, s.err
		}
		return fcgiwire.Record{}, errors.New("fakeSource: exhausted")
	}
	r := s.records[s.pos]
	s.pos++
	return r, nil
}

func stdinRecord(content string) fcgiwire.Record {
	return fcgiwire.Record{Header: fcgiwire.Header{Type: fcgiwire.TypeStdin}, Content: []byte(content)}
}

func otherRecord() fcgiwire.Record {
	return fcgiwire.Record{Header: fcgiwire.Header{Type: fcgiwire.TypeData}, Content: []byte("bogus")}
}

func TestInputGetReturnsImmediatelyWhenBufferHasEnough(t *testing.T) {
	src := &fakeSource{records: []fcgiwire.Record{stdinRecord("hello world")}}
	in := NewInput(src, &fcgistate.ClosedFlag{}, nil)

	got, err := in.Get(context.Background(), 5)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("want \"hello\", got %q", got)
	}

	got, err = in.Get(context.Background(), 6)
	if err != nil {
		t.Fatalf("second Get error: %v", err)
	}
	if string(got) != " world" {
		t.Fatalf("want \" world\", got %q", got)
	}
}

func TestInputGetPullsUntilEnoughOrEOF(t *testing.T) {
	src := &fakeSource{records: []fcgiwire.Record{
		stdinRecord("abc"),
		stdinRecord("def"),
		stdinRecord(""), // end of input
	}}
	in := NewInput(src, &fcgistate.ClosedFlag{}, nil)

	got, err := in.Get(context.Background(), 100)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if string(got) != "abcdef" {
		t.Fatalf("want \"abcdef\", got %q", got)
	}

	got, err = in.Get(context.Background(), 10)
	if err != nil {
		t.Fatalf("Get after EOF error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("want 0 bytes after EOF, got %q", got)
	}
}

func TestInputGetAllConcatenatesFragmentedBody(t *testing.T) {
	first := make([]byte, 65535)
	second := make([]byte, 34465)
	for i := range first {
		first[i] = 'a'
	}
	for i := range second {
		second[i] = 'b'
	}
	src := &fakeSource{records: []fcgiwire.Record{
		{Header: fcgiwire.Header{Type: fcgiwire.TypeStdin}, Content: first},
		{Header: fcgiwire.Header{Type: fcgiwire.TypeStdin}, Content: second},
		stdinRecord(""),
	}}
	in := NewInput(src, &fcgistate.ClosedFlag{}, nil)

	got, err := in.GetAll(context.Background())
	if err != nil {
		t.Fatalf("GetAll error: %v", err)
	}
	if len(got) != 100000 {
		t.Fatalf("want 100000 bytes, got %d", len(got))
	}
}

func TestInputSkipsNonStdinRecords(t *testing.T) {
	var logged []string
	src := &fakeSource{records: []fcgiwire.Record{
		otherRecord(),
		stdinRecord("ok"),
		stdinRecord(""),
	}}
	in := NewInput(src, &fcgistate.ClosedFlag{}, func(format string, args ...any) {
		logged = append(logged, format)
	})

	got, err := in.GetAll(context.Background())
	if err != nil {
		t.Fatalf("GetAll error: %v", err)
	}
	if string(got) != "ok" {
		t.Fatalf("want \"ok\", got %q", got)
	}
	if len(logged) != 1 {
		t.Fatalf("want one log line about the dropped record, got %d", len(logged))
	}
}

func TestInputRejectsReadsAfterClose(t *testing.T) {
	closed := &fcgistate.ClosedFlag{}
	closed.Close()
	in := NewInput(&fakeSource{}, closed, nil)

	if _, err := in.Get(context.Background(), 1); !errors.Is(err, ErrOutputAlreadyClosed) {
		t.Fatalf("want ErrOutputAlreadyClosed, got %v", err)
	}
	if _, err := in.GetAll(context.Background()); !errors.Is(err, ErrOutputAlreadyClosed) {
		t.Fatalf("want ErrOutputAlreadyClosed, got %v", err)
	}
}
