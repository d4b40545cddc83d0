// Package report renders iteration and per-thread XferStats results for
// human consumption (stdout text, scaled with unit prefixes) or machine
// consumption (CSV rows via gocsv).
package report

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/m-lab/nperf/stats"
)

// Count formats a raw count (bytes or transactions) per opts: either the
// exact integer right-aligned to opts.Width, or, for bytes, a human-scaled
// value with a unit prefix. Human-mode transaction counts are comma-grouped,
// not scaled.
func Count(val uint64, opts stats.PrintOptions) string {
	if opts.Exact {
		return fmt.Sprintf("%*d %s", opts.Width, val, opts.Unit)
	}
	if opts.Unit == stats.UnitBytes {
		if opts.BinaryPrefix {
			return humanize.IBytes(val) // IEC: KiB/MiB/GiB
		}
		return humanize.Bytes(val) // SI: KB/MB/GB
	}
	return fmt.Sprintf("%s %s", humanize.Comma(int64(val)), opts.Unit)
}

// Rate formats a per-second rate (bytes/s or transactions/s) per opts.
func Rate(val float64, opts stats.PrintOptions) string {
	if opts.Exact {
		return fmt.Sprintf("%*.1f %s/s", opts.Width, val, opts.Unit)
	}
	if opts.Unit == stats.UnitBytes {
		if opts.BinaryPrefix {
			return humanize.IBytes(uint64(val)) + "/s"
		}
		return humanize.Bytes(uint64(val)) + "/s"
	}
	return fmt.Sprintf("%s %s/s", humanize.CommafWithDigits(val, 1), opts.Unit)
}

// ThreadLine renders one worker's (or the aggregate, when id is negative)
// result line for --verbosity=thread.
func ThreadLine(id int, client, server stats.XferStats, mode stats.Mode, elapsed float64, opts stats.PrintOptions) string {
	label := fmt.Sprintf("thread %-3d", id)
	if id < 0 {
		label = "total     "
	}

	byteOpts := opts
	byteOpts.Unit = stats.UnitBytes

	switch mode {
	case stats.ModeRR:
		return fmt.Sprintf("%s sent %s, rate %s, %s, received %s, rate %s, %s",
			label,
			Count(client.Tx.Msgs, opts), Rate(float64(client.Tx.Msgs)/elapsed, opts),
			Rate(float64(client.Tx.Bytes)/elapsed, byteOpts),
			Count(client.Rx.Msgs, opts), Rate(float64(client.Rx.Msgs)/elapsed, opts),
			Rate(float64(client.Rx.Bytes)/elapsed, byteOpts))
	default:
		return fmt.Sprintf("%s sent %s, rate %s, received %s, rate %s",
			label,
			Count(client.Tx.Bytes, opts), Rate(float64(client.Tx.Bytes)/elapsed, opts),
			Count(server.Rx.Bytes, opts), Rate(float64(server.Rx.Bytes)/elapsed, opts))
	}
}

// IterationLine renders one --verbosity=iter summary line: the iteration's
// own result plus the running average/mdev/confidence. sum and sumSqr cover
// nIter samples; confidHW is the confidence-interval half-width as a fraction
// of the mean.
func IterationLine(iter, nIter int, result, sum, sumSqr, confidHW float64, haveConfid bool, opts stats.PrintOptions) string {
	avg := sum / float64(nIter)
	mdev := stats.MeanDeviation(sum, sumSqr, nIter)

	line := fmt.Sprintf("%-3d %s, avg %s, mdev %s (%5.1f%%)",
		iter, Rate(result, opts), Rate(avg, opts), Rate(mdev, opts), 100*mdev/avg)
	if haveConfid {
		line += fmt.Sprintf(", confid. +/- %s (%5.1f%%)", Rate(confidHW*avg, opts), 100*confidHW)
	}
	return line
}
