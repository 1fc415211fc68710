// Package stats summarizes distributions of per-method counts.
package stats

import "slices"

// Distribution is a percentile summary of a sample.
type Distribution struct {
	P50 float64 `json:"p50" toon:"p50"`
	P90 float64 `json:"p90" toon:"p90"`
	Max float64 `json:"max" toon:"max"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// The slice must already be sorted in ascending order.
// Returns 0 if the slice is empty.
func Percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (p * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Describe sorts values in place and summarizes them. An empty sample
// gives the zero Distribution.
func Describe(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}
	slices.Sort(values)
	return Distribution{
		P50: Percentile(values, 50),
		P90: Percentile(values, 90),
		Max: values[len(values)-1],
	}
}
