package server

import (
	"context"
	"fmt"
	"log"
	"net"

	"github.com/m-lab/nperf/config"
)

// Listen opens the control-channel listener on cfg.CtrlPort. Callers treat a
// failure here as a setup/initialization failure, distinct from a failure
// while serving (see Serve).
func Listen(cfg config.ServerConfig) (net.Listener, error) {
	return newDualStackListener(cfg.CtrlPort)
}

// Serve accepts control connections on ln until ctx is cancelled, one
// goroutine per session. A clean shutdown (ctx cancelled) returns ctx.Err();
// any other returned error is a genuine accept-loop failure.
func Serve(ctx context.Context, cfg config.ServerConfig, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	log.Printf("nperf server listening on control port %d", cfg.CtrlPort)
	for ctx.Err() == nil {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("accept failed: %v", err)
			continue
		}
		go func(conn net.Conn) {
			sess := NewSession(cfg, conn)
			if err := sess.Serve(); err != nil {
				log.Printf("session from %s failed: %v", conn.RemoteAddr(), err)
			}
		}(conn)
	}
	return ctx.Err()
}

// newDualStackListener opens the control-channel listener the same way
// NewDataListener opens the data channel: PF_INET6 with IPV6_V6ONLY cleared,
// on the given fixed port rather than an ephemeral one.
func newDualStackListener(port uint16) (net.Listener, error) {
	lc := dualStackListenConfig()
	return lc.Listen(context.Background(), "tcp6", fmt.Sprintf("[::]:%d", port))
}
