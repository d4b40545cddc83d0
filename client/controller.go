package client

import (
	"context"
	"fmt"
	"math"
	"net"
	"os"
	"time"

	"github.com/m-lab/nperf/config"
	"github.com/m-lab/nperf/estimate"
	"github.com/m-lab/nperf/metrics"
	"github.com/m-lab/nperf/report"
	"github.com/m-lab/nperf/stats"
	"github.com/m-lab/nperf/wire"
	"github.com/m-lab/nperf/wsync"
)

// Controller drives one client run end to end: one or more iterations, each
// of which opens a fresh control connection, spawns a worker pool, and
// collects stats.
type Controller struct {
	Config config.ClientConfig

	// serverAddr is the resolved control-channel address, cached after the
	// first iteration's lookup so later iterations reconnect directly
	// without repeating DNS resolution.
	serverAddr *net.TCPAddr
}

// NewController returns a Controller for the given immutable client config.
func NewController(cfg config.ClientConfig) *Controller {
	return &Controller{Config: cfg}
}

// Run repeats oneIteration until the configured maximum iteration count is
// reached or, once the minimum has completed, the running confidence
// interval reaches the configured target width. It prints per-iteration and
// final result lines per the configured StatsMask.
func (c *Controller) Run(ctx context.Context) error {
	cfg := c.Config
	results := make([]float64, 0, cfg.Iterate.Max)
	var sum, sumSqr float64
	var confidHW float64 = math.Inf(1)
	haveConfid := false

	targetHW := 0.0
	if cfg.Confidence.Set {
		targetHW = 0.999 * cfg.Confidence.TargetPct / 200.0
	}

	var lastErr error
	for iter := uint32(0); iter < cfg.Iterate.Max; iter++ {
		if cfg.StatsMask&(config.StatsThread|config.StatsRaw) != 0 {
			fmt.Printf("iteration %d\n", iter+1)
		}

		result, err := c.oneIteration(ctx, int(iter)+1)
		if err != nil {
			lastErr = err
			metrics.IterationCount.WithLabelValues("failed").Inc()
			fmt.Fprintf(os.Stderr, "*** Iteration %d failed, quitting. ***\n", iter+1)
			break
		}
		metrics.IterationCount.WithLabelValues("ok").Inc()
		metrics.IterationResultHistogram.Observe(result)

		results = append(results, result)
		sum += result
		sumSqr += result * result
		n := len(results)

		if n > 1 {
			level := estimate.Level95
			if cfg.Confidence.Level == 99 {
				level = estimate.Level99
			}
			confidHW = estimate.ConfidenceInterval(sum, sumSqr, n, level) / (sum / float64(n))
			haveConfid = true
			metrics.ConfidenceHalfWidthRatio.Observe(confidHW)
		}

		if cfg.StatsMask&config.StatsIter != 0 {
			fmt.Println(report.IterationLine(int(iter)+1, n, result, sum, sumSqr, confidHW, haveConfid, cfg.Print))
			if cfg.StatsMask&(config.StatsThread|config.StatsRaw) != 0 {
				fmt.Println()
			}
		}

		if cfg.Confidence.Set && uint32(n) >= cfg.Iterate.Min && confidHW <= targetHW {
			break
		}
	}

	if lastErr != nil && len(results) == 0 {
		return lastErr
	}

	if len(results) > 1 && cfg.StatsMask&config.StatsIter != 0 && cfg.StatsMask&(config.StatsThread|config.StatsRaw) != 0 {
		sum, sumSqr = 0, 0
		for i, result := range results {
			sum += result
			sumSqr += result * result
			fmt.Println(report.IterationLine(i+1, i+1, result, sum, sumSqr, confidHW, haveConfid, cfg.Print))
		}
	}

	if len(results) > 0 && cfg.StatsMask&config.StatsResult != 0 {
		n := len(results)
		avg := sum / float64(n)
		mdev := stats.MeanDeviation(sum, sumSqr, n)
		line := fmt.Sprintf("all %s, mdev %s (%5.1f%%)",
			report.Rate(avg, cfg.Print), report.Rate(mdev, cfg.Print), 100*mdev/avg)
		if haveConfid {
			line += fmt.Sprintf(", confid. +/- %s (%5.1f%%)", report.Rate(confidHW*avg, cfg.Print), 100*confidHW)
		}
		fmt.Println(line)
	}

	if cfg.Confidence.Set && (len(results) < 2 || 200.0*confidHW > cfg.Confidence.TargetPct) {
		fmt.Fprintf(os.Stderr, "*** Failed to reach confidence target.\n"+
			"*** Confidence interval width is %.4g%% (+/- %.4g%%), requested %.4g%%.\n"+
			"*** The result is not reliable enough.\n",
			200.0*confidHW, 100.0*confidHW, cfg.Confidence.TargetPct)
	}

	return lastErr
}

// oneIteration runs exactly one iteration: control handshake, worker pool
// lifecycle, stats collection.
func (c *Controller) oneIteration(ctx context.Context, iteration int) (float64, error) {
	cfg := c.Config

	ctrlConn, dataAddr, err := c.ctrlInitialize(ctx)
	if err != nil {
		return 0, fmt.Errorf("client: control handshake: %w", err)
	}
	defer ctrlConn.Close()

	workers := make([]*Worker, cfg.NThreads)
	for i := range workers {
		workers[i] = NewWorker(i, cfg.MsgSize, cfg.Mode == stats.ModeRR)
		workers[i].RcvBufSize = cfg.RcvBufSize
		workers[i].SndBufSize = cfg.SndBufSize
		workers[i].TCPNoDelay = cfg.TCPNoDelay
	}

	barrier := wsync.NewBarrier()
	barrier.SetState(wsync.Init)

	stop := make(chan struct{})
	done := make(chan struct{}, len(workers))
	for _, w := range workers {
		go func(w *Worker) {
			barrier.IncCounter()

			if err := barrier.WaitForState(ctx, wsync.Connect); err != nil {
				done <- struct{}{}
				return
			}
			if err := w.Connect(dataAddr); err != nil {
				done <- struct{}{}
				return
			}
			metrics.ActiveWorkerGauge.WithLabelValues("client").Inc()
			defer metrics.ActiveWorkerGauge.WithLabelValues("client").Dec()
			defer w.Close()
			barrier.IncCounter()

			if err := barrier.WaitForState(ctx, wsync.Run); err != nil {
				done <- struct{}{}
				return
			}
			w.Run(stop)
			done <- struct{}{}
		}(w)
	}
	if err := barrier.WaitForCounter(ctx, uint32(len(workers))); err != nil {
		close(stop)
		return 0, fmt.Errorf("client: starting workers: %w", err)
	}

	barrier.ResetCounter()
	barrier.SetState(wsync.Connect)
	if err := barrier.WaitForCounter(ctx, uint32(len(workers))); err != nil {
		close(stop)
		return 0, fmt.Errorf("client: connecting workers: %w", err)
	}

	barrier.ResetCounter()
	barrier.SetState(wsync.Run)
	start := time.Now()
	sleepErr := wsync.Sleep(ctx, cfg.TestLength)
	close(stop)
	elapsed := time.Since(start).Seconds()
	for range workers {
		<-done
	}
	if sleepErr != nil {
		return 0, fmt.Errorf("client: test interval: %w", sleepErr)
	}

	for _, w := range workers {
		if err := w.Status(); err != nil {
			metrics.WorkerErrorCount.WithLabelValues("client", "io").Inc()
		}
	}

	return c.collectStats(ctrlConn, workers, elapsed, iteration)
}

// ctrlInitialize opens the control connection (fast reconnect to a cached
// address, or full DNS resolution on the first iteration), sends START, and
// receives START-REPLY, returning the data-channel address to dial.
func (c *Controller) ctrlInitialize(ctx context.Context) (net.Conn, string, error) {
	conn, err := c.ctrlConnect(ctx)
	if err != nil {
		return nil, "", err
	}

	start := wire.ClientStart{
		TestID:     1,
		Mode:       c.Config.Mode,
		NThreads:   c.Config.NThreads,
		MsgSize:    c.Config.MsgSize,
		TCPNoDelay: c.Config.TCPNoDelay,
	}
	if err := wire.WriteMessage(conn, start); err != nil {
		conn.Close()
		return nil, "", fmt.Errorf("sending START: %w", err)
	}

	var reply wire.ServerStart
	if err := wire.ReadMessage(conn, &reply); err != nil {
		conn.Close()
		return nil, "", fmt.Errorf("receiving START-REPLY: %w", err)
	}

	host := c.serverAddr.IP.String()
	dataAddr := net.JoinHostPort(host, fmt.Sprintf("%d", reply.DataPort))
	return conn, dataAddr, nil
}

// ctrlConnect dials the control channel, resolving the server's address via
// DNS lookup on the first call and reusing the cached address on subsequent
// calls.
func (c *Controller) ctrlConnect(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{}
	ctrlAddr := net.JoinHostPort(c.Config.ServerHost, fmt.Sprintf("%d", c.Config.CtrlPort))

	if c.serverAddr != nil {
		ctrlAddr = net.JoinHostPort(c.serverAddr.IP.String(), fmt.Sprintf("%d", c.Config.CtrlPort))
	}

	conn, err := dialer.DialContext(ctx, "tcp", ctrlAddr)
	if err != nil {
		return nil, fmt.Errorf("connecting to %q: %w", c.Config.ServerHost, err)
	}
	if c.serverAddr == nil {
		if remote, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
			c.serverAddr = remote
		}
	}
	return conn, nil
}

// collectStats receives the server's END message and per-worker ThreadInfo
// records, correlates them to local workers by client port, prints the
// configured report sections, and returns the iteration's aggregate result.
func (c *Controller) collectStats(ctrlConn net.Conn, workers []*Worker, elapsed float64, iteration int) (float64, error) {
	cfg := c.Config
	showThread := cfg.StatsMask&config.StatsThread != 0
	showRaw := cfg.StatsMask&config.StatsRaw != 0

	var end wire.ServerEnd
	if err := wire.ReadMessage(ctrlConn, &end); err != nil {
		return 0, fmt.Errorf("receiving END: %w", err)
	}
	if end.Status != 0 || end.NThreads != uint32(len(workers)) {
		return 0, fmt.Errorf("client: server reported status=%d n_threads=%d, want %d",
			end.Status, end.NThreads, len(workers))
	}

	serverStats := make([]stats.XferStats, len(workers))
	for i := uint32(0); i < end.NThreads; i++ {
		info, err := wire.ReadThreadInfo(ctrlConn)
		if err != nil {
			return 0, fmt.Errorf("receiving thread info: %w", err)
		}
		idx := workerByPort(workers, info.ClientPort)
		if idx < 0 {
			return 0, fmt.Errorf("client: server reported unknown client port %d", info.ClientPort)
		}
		serverStats[idx] = info.Stats
	}

	if showThread || showRaw {
		fmt.Printf("test time: %.3f\n\n", elapsed)
	}

	var sumClient, sumServer stats.XferStats
	if showRaw {
		writeRawSection(workers, serverStats, iteration, elapsed)
	}
	for i, w := range workers {
		sumClient.Add(w.Stats)
		sumServer.Add(serverStats[i])
	}

	var sumResult, sumResultSqr float64
	for i, w := range workers {
		result := stats.Result(w.Stats, serverStats[i], cfg.Mode, elapsed)
		sumResult += result
		sumResultSqr += result * result
		if showThread {
			fmt.Println(report.ThreadLine(i, w.Stats, serverStats[i], cfg.Mode, elapsed, cfg.Print))
		}
	}
	if showThread {
		fmt.Println(report.ThreadLine(-1, sumClient, sumServer, cfg.Mode, elapsed, cfg.Print))
		fmt.Println()
	}

	metrics.BytesTotal.WithLabelValues("tx", "client").Add(float64(sumClient.Tx.Bytes))
	metrics.BytesTotal.WithLabelValues("rx", "client").Add(float64(sumClient.Rx.Bytes))
	metrics.BytesTotal.WithLabelValues("rx", "server").Add(float64(sumServer.Rx.Bytes))
	metrics.MessagesTotal.WithLabelValues("tx", "client").Add(float64(sumClient.Tx.Msgs))
	metrics.MessagesTotal.WithLabelValues("rx", "client").Add(float64(sumClient.Rx.Msgs))

	return sumResult, nil
}

func workerByPort(workers []*Worker, port uint16) int {
	for i, w := range workers {
		if w.ClientPort == port {
			return i
		}
	}
	return -1
}

func writeRawSection(workers []*Worker, serverStats []stats.XferStats, iteration int, elapsed float64) {
	clientRows := make([]report.RawRow, 0, len(workers)+1)
	var sumClient stats.XferStats
	for i, w := range workers {
		clientRows = append(clientRows, report.NewRawRow(iteration, fmt.Sprintf("%d", i), w.Stats, elapsed))
		sumClient.Add(w.Stats)
	}
	clientRows = append(clientRows, report.NewRawRow(iteration, "total", sumClient, elapsed))
	report.WriteRawCSV(os.Stdout, clientRows)

	serverRows := make([]report.RawRow, 0, len(serverStats)+1)
	var sumServer stats.XferStats
	for i, s := range serverStats {
		serverRows = append(serverRows, report.NewRawRow(iteration, fmt.Sprintf("%d", i), s, elapsed))
		sumServer.Add(s)
	}
	serverRows = append(serverRows, report.NewRawRow(iteration, "total", sumServer, elapsed))
	report.WriteRawCSV(os.Stdout, serverRows)
}
