package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSize converts a human-friendly size string into a byte count.
// Accepts plain integers (bytes) or IEC/human suffixes: KiB/MiB/GiB
// (case-insensitive) or K/M/G.
// Examples: "131072" => 131072, "128KiB" => 131072, "10MiB" => 10485760.
func ParseSize(s string) (int64, error) {
	orig := s
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}
	upper := strings.ToUpper(s)
	// Attempt suffix parsing first.
	if n, ok, err := parseSizeWithSuffix(upper, orig); ok {
		return n, err
	}
	// Fallback: plain integer bytes.
	n, err := parsePositiveInt(upper)
	if err != nil {
		return 0, fmt.Errorf("parse size %q: %w", orig, err)
	}
	return n, nil
}

// parsePositiveInt parses a base-10 int64 and rejects negatives.
func parsePositiveInt(raw string) (int64, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative not allowed")
	}
	return n, nil
}

// parseSizeWithSuffix attempts to parse well-known size suffixes. It returns
// (value, true, nil) on success; (0, false, nil) if no suffix matched; or
// (0, true, error) if a suffix matched but parsing failed.
func parseSizeWithSuffix(upper, orig string) (int64, bool, error) {
	type unit struct {
		suffix string
		mult   int64
	}
	units := []unit{
		{"KIB", 1024}, {"MIB", 1024 * 1024}, {"GIB", 1024 * 1024 * 1024},
		{"K", 1024}, {"M", 1024 * 1024}, {"G", 1024 * 1024 * 1024},
	}
	for _, u := range units {
		if strings.HasSuffix(upper, u.suffix) {
			numPart := strings.TrimSpace(upper[:len(upper)-len(u.suffix)])
			if numPart == "" {
				return 0, true, fmt.Errorf("parse size %q: missing number", orig)
			}
			n, err := parsePositiveInt(numPart)
			if err != nil {
				return 0, true, fmt.Errorf("parse size %q: %w", orig, err)
			}
			return n * u.mult, true, nil
		}
	}
	return 0, false, nil
}
