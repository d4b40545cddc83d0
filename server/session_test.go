package server_test

import (
	"net"
	"testing"
	"time"

	"github.com/m-lab/nperf/config"
	"github.com/m-lab/nperf/server"
	"github.com/m-lab/nperf/stats"
	"github.com/m-lab/nperf/wire"
)

// TestSessionStreamMode drives one Session end to end against a hand-rolled
// client that speaks the wire protocol directly, exercising the control/data
// handshake without pulling in the full client package.
func TestSessionStreamMode(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	sessionErr := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			sessionErr <- err
			return
		}
		sess := server.NewSession(config.ServerConfig{}, conn)
		sessionErr <- sess.Serve()
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	const msgSize = 128
	start := wire.ClientStart{TestID: 1, Mode: stats.ModeStream, NThreads: 1, MsgSize: msgSize}
	if err := wire.WriteMessage(conn, start); err != nil {
		t.Fatalf("WriteMessage(start): %v", err)
	}

	var reply wire.ServerStart
	if err := wire.ReadMessage(conn, &reply); err != nil {
		t.Fatalf("ReadMessage(reply): %v", err)
	}
	if reply.TestID != start.TestID {
		t.Errorf("got TestID %d, want %d", reply.TestID, start.TestID)
	}

	dataAddr := net.JoinHostPort("127.0.0.1", itoa(reply.DataPort))
	dataConn, err := net.Dial("tcp", dataAddr)
	if err != nil {
		t.Fatalf("Dial(data): %v", err)
	}

	buf := make([]byte, msgSize)
	for i := 0; i < 5; i++ {
		if _, err := dataConn.Write(buf); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	dataConn.Close()

	var end wire.ServerEnd
	if err := wire.ReadMessage(conn, &end); err != nil {
		t.Fatalf("ReadMessage(end): %v", err)
	}
	if end.NThreads != 1 {
		t.Errorf("got NThreads %d, want 1", end.NThreads)
	}

	info, err := wire.ReadThreadInfo(conn)
	if err != nil {
		t.Fatalf("ReadThreadInfo: %v", err)
	}
	if info.Stats.Rx.Msgs != 5 {
		t.Errorf("got %d messages received, want 5", info.Stats.Rx.Msgs)
	}
	if info.Stats.Rx.Bytes != 5*msgSize {
		t.Errorf("got %d bytes received, want %d", info.Stats.Rx.Bytes, 5*msgSize)
	}

	select {
	case err := <-sessionErr:
		if err != nil {
			t.Errorf("Session.Serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("session did not complete in time")
	}
}

func itoa(v uint16) string {
	if v == 0 {
		return "0"
	}
	var buf [5]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
