// Package stats provides the small set of numeric helpers used to summarize
// trend series.
package stats

import (
	"cmp"
	"math"
	"slices"
)

// Mean returns the arithmetic mean of values, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	return Sum(values) / float64(len(values))
}

// Median returns the middle value of values, interpolating between the two
// middle elements for even lengths. The input is not modified.
func Median(values []float64) float64 {
	count := len(values)
	if count == 0 {
		return 0
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	if count%2 == 1 {
		return sorted[count/2]
	}

	return (sorted[count/2-1] + sorted[count/2]) / 2
}

// Slope returns the least-squares slope of values against their index.
// Fewer than two values have no slope and return 0.
func Slope(values []float64) float64 {
	count := len(values)
	if count < 2 {
		return 0
	}

	meanX := float64(count-1) / 2
	meanY := Mean(values)

	var num, den float64

	for idx, v := range values {
		dx := float64(idx) - meanX
		num += dx * (v - meanY)
		den += dx * dx
	}

	if den == 0 || math.IsNaN(num) {
		return 0
	}

	return num / den
}

// Clamp restricts val to the range [lo, hi].
func Clamp[T cmp.Ordered](val, lo, hi T) T {
	return max(lo, min(val, hi))
}

// Min returns the smallest element, the zero value for an empty slice.
func Min[T cmp.Ordered](values []T) T {
	if len(values) == 0 {
		var zero T

		return zero
	}

	return slices.Min(values)
}

// Max returns the largest element, the zero value for an empty slice.
func Max[T cmp.Ordered](values []T) T {
	if len(values) == 0 {
		var zero T

		return zero
	}

	return slices.Max(values)
}

// Sum returns the sum of values.
func Sum[T cmp.Ordered](values []T) T {
	var result T

	for _, v := range values {
		result += v
	}

	return result
}
