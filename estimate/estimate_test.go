package estimate_test

import (
	"math"
	"testing"

	"github.com/m-lab/nperf/estimate"
)

func TestConfidenceIntervalZeroSpread(t *testing.T) {
	// Four identical samples should produce a zero-width interval.
	hw := estimate.ConfidenceInterval(40, 400, 4, estimate.Level95)
	if hw != 0 {
		t.Errorf("got %v, want 0", hw)
	}
}

func TestConfidenceIntervalRequiresTwoSamples(t *testing.T) {
	if got := estimate.ConfidenceInterval(10, 100, 1, estimate.Level95); !math.IsInf(got, 1) {
		t.Errorf("got %v, want +Inf", got)
	}
}

func TestConfidenceIntervalWidensWithLevel(t *testing.T) {
	// 99% confidence should always be at least as wide as 95%, for the same data.
	samples := []float64{10, 11, 9, 10.5, 9.5}
	var sum, sumSqr float64
	for _, s := range samples {
		sum += s
		sumSqr += s * s
	}
	hw95 := estimate.ConfidenceInterval(sum, sumSqr, len(samples), estimate.Level95)
	hw99 := estimate.ConfidenceInterval(sum, sumSqr, len(samples), estimate.Level99)
	if hw99 < hw95 {
		t.Errorf("99%% interval (%v) narrower than 95%% (%v)", hw99, hw95)
	}
}

func TestConfidenceIntervalLargeSampleUsesNormalLimit(t *testing.T) {
	// Beyond the table's 30 DOF, the critical value should fall back to the
	// Normal-distribution limit (1.960 at 95%).
	samples := make([]float64, 100)
	for i := range samples {
		samples[i] = 10
	}
	samples[0] = 9
	samples[1] = 11

	var sum, sumSqr float64
	for _, s := range samples {
		sum += s
		sumSqr += s * s
	}
	hw := estimate.ConfidenceInterval(sum, sumSqr, len(samples), estimate.Level95)
	if math.IsNaN(hw) || math.IsInf(hw, 0) {
		t.Errorf("got non-finite half-width %v", hw)
	}
	n := float64(len(samples))
	want := 1.960 * math.Sqrt((n*sumSqr-sum*sum)/(n*(n-1))) / math.Sqrt(n)
	if math.Abs(hw-want) > 1e-9 {
		t.Errorf("got half-width %v, want %v (Normal critical value)", hw, want)
	}
}

func TestLevelPercent(t *testing.T) {
	if estimate.Level95.Percent() != 95 {
		t.Errorf("got %d, want 95", estimate.Level95.Percent())
	}
	if estimate.Level99.Percent() != 99 {
		t.Errorf("got %d, want 99", estimate.Level99.Percent())
	}
}
