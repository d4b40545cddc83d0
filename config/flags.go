package config

import (
	"fmt"
	"strconv"
	"strings"
)

// SuffixedUint64Flag is a flag.Value wrapping ParseSuffixedUint64, for flags
// like --msg-size and --rcvbuf that accept the k/K/m/M/g/G/t/T convention.
type SuffixedUint64Flag struct {
	Name  string
	Value uint64
}

func (f *SuffixedUint64Flag) String() string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("%d", f.Value)
}

func (f *SuffixedUint64Flag) Set(s string) error {
	v, err := ParseSuffixedUint64(f.Name, s)
	if err != nil {
		return err
	}
	f.Value = v
	return nil
}

// IterateFlag is a flag.Value for --iterate N or --iterate min,max.
type IterateFlag struct {
	Spec IterateSpec
}

func (f *IterateFlag) String() string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("%d,%d", f.Spec.Min, f.Spec.Max)
}

func (f *IterateFlag) Set(s string) error {
	min, max, err := ParseRange("iterate", s)
	if err != nil {
		return err
	}
	f.Spec = IterateSpec{Min: uint32(min), Max: uint32(max)}
	return nil
}

// ConfidenceFlag is a flag.Value for --confidence level[,width], e.g.
// "95" or "95,5".
type ConfidenceFlag struct {
	Spec ConfidenceSpec
}

func (f *ConfidenceFlag) String() string {
	if f == nil || !f.Spec.Set {
		return ""
	}
	return fmt.Sprintf("%d,%g", f.Spec.Level, f.Spec.TargetPct)
}

func (f *ConfidenceFlag) Set(s string) error {
	parts := strings.SplitN(s, ",", 2)
	level, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid confidence level %q: %w", parts[0], err)
	}
	if level != 95 && level != 99 {
		return fmt.Errorf("confidence level must be 95 or 99, got %d", level)
	}

	targetPct := 5.0
	if len(parts) == 2 {
		targetPct, err = strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return fmt.Errorf("invalid confidence width %q: %w", parts[1], err)
		}
	}
	f.Spec = ConfidenceSpec{Set: true, Level: uint32(level), TargetPct: targetPct}
	return nil
}
