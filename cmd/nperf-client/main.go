// Command nperf-client drives one or more benchmark iterations against an
// nperf server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"

	"github.com/m-lab/nperf/client"
	"github.com/m-lab/nperf/config"
	"github.com/m-lab/nperf/stats"
	"github.com/m-lab/nperf/wire"
)

func init() {
	// Always prepend the filename and line number.
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

var (
	serverHost = flag.String("host", "", "Server hostname or address (required)")
	ctrlPort   = flag.Uint("port", wire.DefaultPort, "Server control port")
	promPort   = flag.String("prom", ":9090", "Prometheus metrics export address and port")

	mode       = flag.String("mode", "stream", "Test mode: stream or rr")
	nThreads   = flag.Uint("threads", 1, "Number of parallel test connections")
	msgSize    = flag.String("msg-size", "16K", "Message size (suffixed: k/K/m/M/g/G)")
	testLength = flag.Duration("test-length", 0, "Duration of each iteration (default 10s)")
	tcpNoDelay = flag.Bool("tcp-nodelay", false, "Set TCP_NODELAY on test connections")

	rcvBuf = flag.String("rcvbuf", "0", "Socket receive buffer size (suffixed: k/K/m/M/g/G)")
	sndBuf = flag.String("sndbuf", "0", "Socket send buffer size (suffixed: k/K/m/M/g/G)")

	iterate    = config.IterateFlag{Spec: config.IterateSpec{Min: 1, Max: 1}}
	confidence config.ConfidenceFlag

	verbosity = flag.String("verbosity", "result", "Output verbosity: result, iter, thread, raw, all")
	exact     = flag.Bool("exact", false, "Print exact counts instead of human-scaled units")
	binary    = flag.Bool("binary", false, "Use binary (KiB/MiB) instead of decimal (KB/MB) unit prefixes")
)

func init() {
	flag.Var(&iterate, "iterate", "Iteration count: N or min,max")
	flag.Var(&confidence, "confidence", "Confidence target: level[,width], e.g. 95,5")
}

func parseMode(s string) (stats.Mode, error) {
	switch s {
	case "stream":
		return stats.ModeStream, nil
	case "rr":
		return stats.ModeRR, nil
	default:
		return 0, fmt.Errorf("invalid --mode %q, want stream or rr", s)
	}
}

func buildConfig() (config.ClientConfig, error) {
	m, err := parseMode(*mode)
	if err != nil {
		return config.ClientConfig{}, err
	}
	msgSizeVal, err := config.ParseSuffixedUint64("msg-size", *msgSize)
	if err != nil {
		return config.ClientConfig{}, err
	}
	rcvBufVal, err := config.ParseSuffixedUint64("rcvbuf", *rcvBuf)
	if err != nil {
		return config.ClientConfig{}, err
	}
	sndBufVal, err := config.ParseSuffixedUint64("sndbuf", *sndBuf)
	if err != nil {
		return config.ClientConfig{}, err
	}
	statsMask, err := config.ParseStatsMask(*verbosity)
	if err != nil {
		return config.ClientConfig{}, err
	}

	length := *testLength
	if length == 0 {
		length = 10 * time.Second
	}

	return config.ClientConfig{
		ServerHost: *serverHost,
		CtrlPort:   uint16(*ctrlPort),
		Mode:       m,
		NThreads:   uint32(*nThreads),
		MsgSize:    uint32(msgSizeVal),
		TestLength: length,
		RcvBufSize: uint32(rcvBufVal),
		SndBufSize: uint32(sndBufVal),
		TCPNoDelay: *tcpNoDelay,
		Iterate:    iterate.Spec,
		Confidence: confidence.Spec,
		StatsMask:  statsMask,
		Print:      stats.NewPrintOptions(m, *exact, *binary),
	}, nil
}

func main() {
	flag.Parse()
	flagx.ArgsFromEnv(flag.CommandLine)

	if *serverHost == "" {
		fmt.Fprintln(os.Stderr, "--host is required")
		os.Exit(1)
	}

	cfg, err := buildConfig()
	rtx.Must(err, "invalid configuration")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	promSrv := prometheusx.MustStartPrometheus(*promPort)
	defer promSrv.Shutdown(ctx)

	fmt.Printf("server: %s, port %d\n", cfg.ServerHost, cfg.CtrlPort)
	if cfg.Iterate.Min < cfg.Iterate.Max {
		fmt.Printf("iterations: %d-%d", cfg.Iterate.Min, cfg.Iterate.Max)
	} else {
		fmt.Printf("iterations: %d", cfg.Iterate.Min)
	}
	fmt.Printf(", threads: %d, test length: %s\n", cfg.NThreads, cfg.TestLength)
	if cfg.Confidence.Set {
		fmt.Printf("confidence target: %.1f%% (+/- %.1f%%) at %d%%\n",
			cfg.Confidence.TargetPct, cfg.Confidence.TargetPct/2, cfg.Confidence.Level)
	}
	fmt.Printf("test: %s, message size: %d\n\n", cfg.Mode, cfg.MsgSize)

	ctrl := client.NewController(cfg)
	if err := ctrl.Run(ctx); err != nil {
		log.Print(err)
		os.Exit(2)
	}
}
