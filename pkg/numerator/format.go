// Package numerator turns gapless counter values into printable document
// numbers such as FDI-2025-00001.
package numerator

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	corenumerator "contabil/internal/core/numerator"
)

// Config holds numbering presentation settings.
type Config struct {
	// IncludeYear adds the counter year to the number
	IncludeYear bool

	// PadWidth is the minimum width of the numeric part (default 5)
	PadWidth int
}

// DefaultConfig returns SERIES-YEAR-NNNNN formatting.
func DefaultConfig() Config {
	return Config{IncludeYear: true, PadWidth: 5}
}

// Service issues formatted document numbers on top of an Allocator.
type Service struct {
	allocator corenumerator.Allocator
	cfg       Config
}

// New creates a numbering service.
func New(allocator corenumerator.Allocator, cfg Config) *Service {
	return &Service{allocator: allocator, cfg: cfg}
}

// Next allocates the next number for key and formats it.
// Call it inside the transaction that persists the document.
func (s *Service) Next(ctx context.Context, key corenumerator.Key) (string, error) {
	if s == nil || s.allocator == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}
	n, err := s.allocator.Allocate(ctx, key)
	if err != nil {
		return "", err
	}
	return Format(s.cfg, key, n), nil
}

// Format renders n for key.
func Format(cfg Config, key corenumerator.Key, n int64) string {
	padWidth := cfg.PadWidth
	if padWidth <= 0 {
		padWidth = 5
	}
	if cfg.IncludeYear {
		return fmt.Sprintf("%s-%d-%0*d", key.Series, key.Year, padWidth, n)
	}
	return fmt.Sprintf("%s-%0*d", key.Series, padWidth, n)
}

// Parse splits a formatted number into series, year (0 when absent) and
// the numeric part.
func Parse(formatted string) (series string, year int, n int64, err error) {
	parts := strings.Split(formatted, "-")
	switch len(parts) {
	case 2:
		n, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return "", 0, 0, fmt.Errorf("parse number %q: %w", formatted, err)
		}
		return parts[0], 0, n, nil
	case 3:
		year, err = strconv.Atoi(parts[1])
		if err != nil {
			return "", 0, 0, fmt.Errorf("parse year in %q: %w", formatted, err)
		}
		n, err = strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return "", 0, 0, fmt.Errorf("parse number %q: %w", formatted, err)
		}
		return parts[0], year, n, nil
	default:
		return "", 0, 0, fmt.Errorf("unrecognized document number %q", formatted)
	}
}
