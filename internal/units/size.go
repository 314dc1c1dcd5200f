// Package units parses human-readable size strings into byte counts.
package units

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Distinct parse failure causes, so callers can tell an empty string from an
// overflow without string matching.
var (
	ErrEmptySize    = errors.New("empty size string")
	ErrBadNumber    = errors.New("invalid numeric value")
	ErrBadSuffix    = errors.New("unknown size suffix")
	ErrSizeOverflow = errors.New("size overflows 64 bits")
	ErrSizeTooLarge = errors.New("size exceeds addressable range")
)

var multipliers = map[string]uint64{
	"":   1,
	"k":  1 << 10,
	"kb": 1 << 10,
	"m":  1 << 20,
	"mb": 1 << 20,
	"g":  1 << 30,
	"gb": 1 << 30,
	"t":  1 << 40,
	"tb": 1 << 40,
}

// ParseSize parses a size string like "512", "4k", "128M" or "2G" into bytes.
// Suffixes are case-insensitive binary multipliers (k=1024, m=1024^2, ...).
// The result must fit the platform's uint; on 32-bit targets a valid 64-bit
// value can still fail with ErrSizeTooLarge.
func ParseSize(s string) (uint, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, ErrEmptySize
	}

	// Split at the first non-digit byte.
	cut := len(s)
	for i := range len(s) {
		if s[i] < '0' || s[i] > '9' {
			cut = i
			break
		}
	}
	numStr, suffix := s[:cut], s[cut:]

	n, err := strconv.ParseUint(numStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadNumber, s)
	}

	mult, ok := multipliers[suffix]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrBadSuffix, suffix)
	}

	if n != 0 && n > math.MaxUint64/mult {
		return 0, fmt.Errorf("%w: %q", ErrSizeOverflow, s)
	}
	total := n * mult

	if total > math.MaxUint {
		return 0, fmt.Errorf("%w: %q (max %d)", ErrSizeTooLarge, s, uint(math.MaxUint))
	}
	return uint(total), nil
}
