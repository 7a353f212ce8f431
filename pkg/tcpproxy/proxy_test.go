package tcpproxy

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

type mockConn struct {
	readBuf  *bytes.Buffer
	writeBuf *bytes.Buffer
}

func newMockConn(readData string) *mockConn {
	return &mockConn{readBuf: bytes.NewBufferString(readData), writeBuf: &bytes.Buffer{}}
}

func (m *mockConn) Read(p []byte) (int, error)  { return m.readBuf.Read(p) }
func (m *mockConn) Write(p []byte) (int, error) { return m.writeBuf.Write(p) }
func (m *mockConn) Close() error                { return nil }

func mockDialFunc() (io.ReadWriteCloser, error) {
	return newMockConn("response data"), nil
}

func mockFailDialFunc() (io.ReadWriteCloser, error) {
	return nil, errors.New("dial error")
}

func writeAll(w io.Writer, data []byte) error {
	_, err := w.Write(data)
	return err
}

func writeAllError(io.Writer, []byte) error {
	return errors.New("pipe error")
}

func TestProxyRelaysRequestAndResponse(t *testing.T) {
	clientConn := newMockConn("request data")
	handler := Proxy[[]byte](mockDialFunc,
		Pipe[[]byte]{Reader: io.ReadAll, Writer: writeAll, Logger: discardLogger()},
		Pipe[[]byte]{Reader: io.ReadAll, Writer: writeAll, Logger: discardLogger()},
	)

	if err := handler(clientConn); err != nil {
		t.Fatalf("Proxy handler: %v", err)
	}
	if clientConn.writeBuf.String() != "response data" {
		t.Errorf("want client to receive \"response data\", got %q", clientConn.writeBuf.String())
	}
}

func TestProxyDialError(t *testing.T) {
	clientConn := newMockConn("request data")
	handler := Proxy(mockFailDialFunc,
		Pipe[[]byte]{Reader: io.ReadAll, Writer: writeAll, Logger: discardLogger()},
		Pipe[[]byte]{Reader: io.ReadAll, Writer: writeAll, Logger: discardLogger()},
	)

	err := handler(clientConn)
	if err == nil || err.Error() != "error connecting upstream: dial error" {
		t.Fatalf("want dial error, got %v", err)
	}
}

func TestProxyPipeRunError(t *testing.T) {
	clientConn := newMockConn("request data")
	handler := Proxy(mockDialFunc,
		Pipe[[]byte]{Reader: io.ReadAll, Writer: writeAll, Logger: discardLogger()},
		Pipe[[]byte]{Reader: io.ReadAll, Writer: writeAllError, Logger: discardLogger()},
	)

	err := handler(clientConn)
	if err == nil || err.Error() != "pipe error" {
		t.Fatalf("want pipe error, got %v", err)
	}
}
