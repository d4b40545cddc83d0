package config_test

import (
	"testing"

	"github.com/m-lab/nperf/config"
)

func TestParseSuffixedUint64(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
	}{
		{"100", 100},
		{"1k", 1_000},
		{"1K", 1024},
		{"2m", 2_000_000},
		{"2M", 2 * 1024 * 1024},
		{"1g", 1_000_000_000},
		{"1G", 1 << 30},
		{"1t", 1_000_000_000_000},
		{"1T", 1 << 40},
	}
	for _, c := range cases {
		got, err := config.ParseSuffixedUint64("test", c.in)
		if err != nil {
			t.Errorf("ParseSuffixedUint64(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseSuffixedUint64(%q): got %d, want %d", c.in, got, c.want)
		}
	}
}

func TestParseSuffixedUint64Invalid(t *testing.T) {
	for _, in := range []string{"", "abc", "1x", "-5"} {
		if _, err := config.ParseSuffixedUint64("test", in); err == nil {
			t.Errorf("ParseSuffixedUint64(%q): expected error", in)
		}
	}
}

func TestParseRange(t *testing.T) {
	min, max, err := config.ParseRange("test", "5,10")
	if err != nil || min != 5 || max != 10 {
		t.Errorf("got (%d, %d, %v), want (5, 10, nil)", min, max, err)
	}

	min, max, err = config.ParseRange("test", "7")
	if err != nil || min != 7 || max != 7 {
		t.Errorf("bare value: got (%d, %d, %v), want (7, 7, nil)", min, max, err)
	}

	if _, _, err := config.ParseRange("test", "10,5"); err == nil {
		t.Error("expected error for max below min")
	}
}
