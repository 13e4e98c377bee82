// Package utils provides utility functions for the application.
package utils

import (
	"math"
	"strings"
)

func ToPtr[T any](v T) *T {
	return &v
}

func IsTrue(b *bool) bool {
	return b != nil && *b
}

// NilIfEmpty returns nil for blank strings so optional columns stay NULL
func NilIfEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// NilIfBlank is NilIfEmpty for optional inputs
func NilIfBlank(s *string) *string {
	if s == nil {
		return nil
	}
	return NilIfEmpty(*s)
}

// Percentage returns part/total*100 rounded to two decimals, or 0 when total is 0
func Percentage(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return round2(float64(part) / float64(total) * 100)
}

// Percentage100 converts a ratio in [0, 1] to a percentage rounded to two decimals
func Percentage100(ratio float64) float64 {
	return round2(ratio * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
