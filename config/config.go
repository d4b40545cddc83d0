package config

import (
	"fmt"
	"time"

	"github.com/m-lab/nperf/stats"
)

// StatsMask is a bitmask of which result sections to print, controlled by
// the --verbosity flag.
type StatsMask uint32

const (
	StatsResult StatsMask = 1 << iota // final aggregate across all iterations
	StatsIter                         // one line per iteration
	StatsThread                       // per-thread breakdown
	StatsRaw                          // raw machine-readable counters

	StatsAll = StatsResult | StatsIter | StatsThread | StatsRaw
)

// ParseStatsMask accepts either a named verbosity level or a decimal
// bitmask literal.
func ParseStatsMask(s string) (StatsMask, error) {
	switch s {
	case "result":
		return StatsResult, nil
	case "iter":
		return StatsResult | StatsIter, nil
	case "thread":
		return StatsResult | StatsIter | StatsThread, nil
	case "raw":
		return StatsResult | StatsRaw, nil
	case "all":
		return StatsAll, nil
	}
	var mask uint32
	if _, err := fmt.Sscanf(s, "%d", &mask); err != nil {
		return 0, fmt.Errorf("invalid verbosity %q", s)
	}
	return StatsMask(mask), nil
}

// IterateSpec is the parsed --iterate min,max bound.
type IterateSpec struct {
	Min, Max uint32
}

// ConfidenceSpec is the parsed --confidence level[,width] target. Set is
// false when no --confidence flag was given at all.
type ConfidenceSpec struct {
	Set        bool
	Level      uint32 // 95 or 99
	TargetPct  float64
}

// ClientConfig is the immutable configuration for one client run, built once
// in main() and threaded explicitly into client.NewController — there is no
// package-level mutable config var anywhere in this tree.
type ClientConfig struct {
	ServerHost string
	CtrlPort   uint16

	Mode       stats.Mode
	NThreads   uint32
	MsgSize    uint32
	TestLength time.Duration

	RcvBufSize uint32
	SndBufSize uint32
	TCPNoDelay bool

	Iterate    IterateSpec
	Confidence ConfidenceSpec

	StatsMask StatsMask
	Print     stats.PrintOptions
}

// ServerConfig is the immutable configuration for the server process.
type ServerConfig struct {
	CtrlPort uint16
}
