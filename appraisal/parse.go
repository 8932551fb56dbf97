package appraisal

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// NormalizeConfidence maps an upstream confidence onto [0,100]. Values in
// (0,1] are treated as fractions (0.82 → 82); everything else is taken as a
// percentage and clamped.
func NormalizeConfidence(c float64) int {
	if math.IsNaN(c) || c <= 0 {
		return 0
	}
	if c <= 1 {
		c *= 100
	}
	return int(math.Min(math.Round(c), 100))
}

// ParseMileage strips every non-digit and parses the rest, so "120.000 km" is 120000.
func ParseMileage(s string) (int, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if digits == "" {
		return 0, fmt.Errorf("%w: mileage %q has no digits", ErrMissingDetails, s)
	}
	km, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("mileage %q: %w", s, err)
	}
	return km, nil
}

// ParseYear parses a model year between 1900 and next year.
func ParseYear(s string) (int, error) {
	s = strings.TrimFunc(s, unicode.IsSpace)
	if s == "" {
		return 0, fmt.Errorf("%w: year is empty", ErrMissingDetails)
	}
	year, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("year %q: %w", s, err)
	}
	if max := time.Now().Year() + 1; year < 1900 || year > max {
		return 0, fmt.Errorf("year %d out of range 1900-%d", year, max)
	}
	return year, nil
}
