// Command example is a minimal FastCGI responder demonstrating the
// handler contract: read the body, look at a few CGI variables, write
// a response.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/wmeyer/sharpcgi/server"
)

func main() {
	listen := "127.0.0.1:9000"
	multiplex := false
	useStdinSocket := false

	fs := flag.NewFlagSet("example", flag.ContinueOnError)
	fs.StringVar(&listen, "listen", listen, "address to listen on")
	fs.BoolVar(&multiplex, "multiplex", multiplex, "accept multiplexed connections")
	fs.BoolVar(&useStdinSocket, "stdin-socket", useStdinSocket, "adopt the listening socket from file descriptor 0")

	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatalf("cannot parse arguments: %v", err)
	}

	cfg := server.NewConfig()
	cfg.Multiplex = multiplex
	cfg.MaxConns = "10"
	cfg.MaxReqs = "50"
	cfg.ErrorLogger = func(format string, args ...any) { log.Printf("error: "+format, args...) }
	cfg.TraceLogger = func(format string, args ...any) { log.Printf("trace: "+format, args...) }

	if useStdinSocket {
		cfg.Bind = server.UseStdinSocket
	} else {
		cfg.Bind = server.CreateSocket
		cfg.EndPoint = listen
		log.Printf("listening on %s", listen)
	}

	done := make(chan struct{})
	if err := server.Serve(done, cfg, handle); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func handle(req *server.Request, resp *server.Response) error {
	body, err := req.Input.GetAll(context.Background())
	if err != nil {
		return fmt.Errorf("reading body: %w", err)
	}

	if err := resp.SetHeader("X-Powered-By", "sharpcgi"); err != nil {
		return err
	}

	fmt.Fprintf(bodyWriter{resp}, "method=%s path=%s query=%s\nbody bytes=%d\n", req.Method(), req.ScriptName(), req.QueryString(), len(body))
	return nil
}

// bodyWriter adapts Response.Put to io.Writer for fmt.Fprintf.
type bodyWriter struct {
	resp *server.Response
}

func (w bodyWriter) Write(p []byte) (int, error) {
	if err := w.resp.Put(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

var _ io.Writer = bodyWriter{}
