package main

import (
	"flag"
	"io"
	"log"
	"net"
	"os"

	"github.com/wmeyer/sharpcgi/pkg/autoinc"
	"github.com/wmeyer/sharpcgi/pkg/tcpproxy"
)

func main() {
	listen := "127.0.0.1:9001"
	forwardTo := "127.0.0.1:9000"

	fs := flag.NewFlagSet("fcgidump", flag.ContinueOnError)
	fs.StringVar(&listen, "listen", listen, "address to accept upstream server connections on")
	fs.StringVar(&forwardTo, "forward-to", forwardTo, "responder address to relay traffic to")
	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatalf("cannot parse arguments: %v", err)
	}

	listener, err := net.Listen("tcp", listen)
	if err != nil {
		log.Fatalf("cannot listen on %s: %v", listen, err)
	}
	defer listener.Close()

	logger := log.New(os.Stdout, "", log.LstdFlags)
	logger.Printf("dumping traffic from %s to %s", listen, forwardTo)

	dial := func() (io.ReadWriteCloser, error) {
		return net.Dial("tcp", forwardTo)
	}

	var seq autoinc.AutoInc[uint64]
	requestPipe := tcpproxy.Pipe[frame]{
		Reader:  readRequest,
		Writer:  writeFrame,
		Decoder: numberedSummary(&seq),
		Logger:  logger,
	}
	responsePipe := tcpproxy.Pipe[frame]{
		Reader:  readResponse,
		Writer:  writeFrame,
		Decoder: numberedSummary(&seq),
		Logger:  logger,
	}

	handler := tcpproxy.Proxy(dial, requestPipe, responsePipe)

	done := make(chan struct{})
	tcpproxy.Run(done, listener, handler, logger)
}
