// Package config implements the CLI surface's parsing conventions and the
// immutable configuration values threaded into the client controller and
// server listener. It exposes parsing functions and plain config structs
// rather than a CLI framework.
package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSuffixedUint64 parses a decimal number optionally followed by a
// magnitude suffix: lowercase k/m/g/t are powers of ten, uppercase K/M/G/T
// are powers of two. Hand-rolled because this case-sensitive, asymmetric-base
// convention doesn't match any general-purpose byte-size parser (see
// DESIGN.md).
func ParseSuffixedUint64(name, s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("invalid value %q of %s", s, name)
	}

	suffix := s[len(s)-1]
	factor, hasSuffix := suffixFactor(suffix)
	numPart := s
	if hasSuffix {
		numPart = s[:len(s)-1]
	}

	val, err := strconv.ParseUint(numPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q of %s: %w", s, name, err)
	}

	if factor > 1 && val > (^uint64(0))/factor {
		return 0, fmt.Errorf("value %q of %s too large", s, name)
	}
	return val * factor, nil
}

func suffixFactor(c byte) (uint64, bool) {
	switch c {
	case 'k':
		return 1_000, true
	case 'K':
		return 1 << 10, true
	case 'm':
		return 1_000_000, true
	case 'M':
		return 1 << 20, true
	case 'g':
		return 1_000_000_000, true
	case 'G':
		return 1 << 30, true
	case 't':
		return 1_000_000_000_000, true
	case 'T':
		return 1 << 40, true
	default:
		return 1, false
	}
}

// ParseRange parses a "min,max" or bare "n" string (n implies min==max==n),
// per the --iterate CLI convention.
func ParseRange(name, s string) (min, max uint64, err error) {
	parts := strings.SplitN(s, ",", 2)
	min, err = ParseSuffixedUint64(name, parts[0])
	if err != nil {
		return 0, 0, err
	}
	if len(parts) == 1 {
		return min, min, nil
	}
	max, err = ParseSuffixedUint64(name, parts[1])
	if err != nil {
		return 0, 0, err
	}
	if max < min {
		return 0, 0, fmt.Errorf("%s: max (%d) below min (%d)", name, max, min)
	}
	return min, max, nil
}
