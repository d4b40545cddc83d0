// Command nperf-server accepts control connections and runs benchmark
// sessions.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/prometheusx"

	"github.com/m-lab/nperf/config"
	"github.com/m-lab/nperf/server"
	"github.com/m-lab/nperf/wire"
)

func init() {
	// Always prepend the filename and line number.
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

var (
	ctrlPort = flag.Uint("port", wire.DefaultPort, "Control channel listen port")
	promPort = flag.String("prom", ":9090", "Prometheus metrics export address and port")
)

func main() {
	flag.Parse()
	flagx.ArgsFromEnv(flag.CommandLine)

	cfg := config.ServerConfig{CtrlPort: uint16(*ctrlPort)}
	fmt.Printf("port: %d\n", cfg.CtrlPort)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	promSrv := prometheusx.MustStartPrometheus(*promPort)
	defer promSrv.Shutdown(ctx)

	ln, err := server.Listen(cfg)
	if err != nil {
		log.Print(err)
		os.Exit(2)
	}

	if err := server.Serve(ctx, cfg, ln); err != nil && ctx.Err() == nil {
		log.Print(err)
		os.Exit(3)
	}
}
