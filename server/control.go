package server

import (
	"fmt"
	"net"
	"sync"

	"github.com/m-lab/nperf/config"
	"github.com/m-lab/nperf/metrics"
	"github.com/m-lab/nperf/stats"
	"github.com/m-lab/nperf/wire"
)

// Session negotiates and runs one test over an accepted control connection:
// receive START, open a data listener, reply with its port, accept NThreads
// data connections, run the workers, then send END plus per-worker
// ThreadInfo records.
type Session struct {
	Config config.ServerConfig
	conn   net.Conn
}

// NewSession wraps an accepted control connection.
func NewSession(cfg config.ServerConfig, conn net.Conn) *Session {
	return &Session{Config: cfg, conn: conn}
}

// Serve runs the full session lifecycle. It always closes the control
// connection before returning.
func (s *Session) Serve() error {
	defer s.conn.Close()

	var start wire.ClientStart
	if err := wire.ReadMessage(s.conn, &start); err != nil {
		metrics.SessionsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("server: receiving START: %w", err)
	}

	ln, err := NewDataListener()
	if err != nil {
		metrics.SessionsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("server: opening data listener: %w", err)
	}
	defer ln.Close()

	dataPort, err := listenerPort(ln)
	if err != nil {
		metrics.SessionsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("server: reading listener port: %w", err)
	}

	reply := wire.ServerStart{TestID: start.TestID, DataPort: dataPort}
	if err := wire.WriteMessage(s.conn, reply); err != nil {
		metrics.SessionsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("server: sending START-REPLY: %w", err)
	}

	workers, runErr := s.runTest(ln, start)
	status := uint32(0)
	if runErr != nil {
		status = 1
	}

	if err := s.sendEnd(start.TestID, status, workers); err != nil {
		metrics.SessionsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("server: sending END: %w", err)
	}

	if runErr != nil {
		metrics.SessionsTotal.WithLabelValues("failed").Inc()
		return runErr
	}
	metrics.SessionsTotal.WithLabelValues("ok").Inc()
	return nil
}

// runTest accepts exactly start.NThreads data connections, spawns one Worker
// goroutine per connection, and waits for all of them to finish.
func (s *Session) runTest(ln net.Listener, start wire.ClientStart) ([]*Worker, error) {
	workers := make([]*Worker, 0, start.NThreads)
	var wg sync.WaitGroup

	for i := uint32(0); i < start.NThreads; i++ {
		conn, err := ln.Accept()
		if err != nil {
			wg.Wait()
			return workers, fmt.Errorf("accepting data connection %d/%d: %w", i+1, start.NThreads, err)
		}
		clientPort, err := remotePort(conn)
		if err != nil {
			conn.Close()
			wg.Wait()
			return workers, fmt.Errorf("reading remote port: %w", err)
		}

		w := NewWorker(int(i), conn, clientPort, start.MsgSize, start.Mode == stats.ModeRR)
		workers = append(workers, w)

		metrics.ActiveWorkerGauge.WithLabelValues("server").Inc()
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			defer metrics.ActiveWorkerGauge.WithLabelValues("server").Dec()
			if err := w.Run(); err != nil {
				metrics.WorkerErrorCount.WithLabelValues("server", "io").Inc()
			}
		}(w)
	}

	wg.Wait()
	return workers, nil
}

// sendEnd sends the ServerEnd header followed by one ThreadInfo record per
// worker.
func (s *Session) sendEnd(testID, status uint32, workers []*Worker) error {
	end := wire.ServerEnd{
		TestID:           testID,
		Status:           status,
		ThreadInfoLength: wire.ThreadInfoSize,
		NThreads:         uint32(len(workers)),
	}
	if err := wire.WriteMessage(s.conn, end); err != nil {
		return err
	}

	for _, w := range workers {
		info := wire.ThreadInfo{
			Stats:      w.Stats,
			ClientPort: w.ClientPort,
		}
		if err := wire.WriteThreadInfo(s.conn, info); err != nil {
			return err
		}

		metrics.BytesTotal.WithLabelValues("rx", "server").Add(float64(w.Stats.Rx.Bytes))
		metrics.BytesTotal.WithLabelValues("tx", "server").Add(float64(w.Stats.Tx.Bytes))
		metrics.MessagesTotal.WithLabelValues("rx", "server").Add(float64(w.Stats.Rx.Msgs))
	}
	return nil
}

func listenerPort(ln net.Listener) (uint16, error) {
	addr, ok := ln.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("server: listener address is not TCP")
	}
	return uint16(addr.Port), nil
}

func remotePort(conn net.Conn) (uint16, error) {
	addr, ok := conn.RemoteAddr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("server: remote address is not TCP")
	}
	return uint16(addr.Port), nil
}
