package tcpproxy

import (
	"log"
	"net"
	"sync"
)

// Run accepts connections on listener until done fires, handing each
// to handler on its own goroutine and waiting for in-flight handlers
// to finish before returning.
func Run(done <-chan struct{}, listener net.Listener, handler Handler, logger *log.Logger) {
	var wg sync.WaitGroup

	connChan := make(chan net.Conn)
	errChan := make(chan error)

	go func() {
		for {
			clientConn, err := listener.Accept()
			if err != nil {
				errChan <- err
				return
			}
			connChan <- clientConn
		}
	}()

	for {
		select {
		case <-done:
			logger.Println("stopping accept loop")
			wg.Wait()
			return
		case clientConn := <-connChan:
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer clientConn.Close()
				if err := handler(clientConn); err != nil {
					logger.Println(err)
				}
			}()
		case err := <-errChan:
			logger.Printf("error accepting connection: %v", err)
		}
	}
}
