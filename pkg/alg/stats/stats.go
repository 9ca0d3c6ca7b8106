// Package stats provides the statistical helpers used to summarize ratio and
// execution-time distributions. All standard deviation calculations use
// population stddev (÷n, not ÷(n−1)).
package stats

import (
	"math"
	"slices"
)

// Well-known percentile thresholds.
const (
	PercentileMedian = 0.5
	PercentileP95    = 0.95
)

// Mean returns the arithmetic mean of values.
// Returns 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64

	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

// MeanStdDev returns the arithmetic mean and population standard deviation.
// Returns (0, 0) for an empty slice.
func MeanStdDev(values []float64) (mean, stddev float64) {
	count := len(values)
	if count == 0 {
		return 0, 0
	}

	mean = Mean(values)

	var sumSq float64

	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}

	return mean, math.Sqrt(sumSq / float64(count))
}

// Percentile returns the p-th percentile of values using linear
// interpolation. p must be in [0, 1]. The input slice is not modified
// (a copy is sorted internally). Returns 0 for an empty slice.
func Percentile(values []float64, p float64) float64 {
	count := len(values)
	if count == 0 {
		return 0
	}

	sorted := make([]float64, count)
	copy(sorted, values)
	slices.Sort(sorted)

	idx := p * float64(count-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))

	if lower == upper || upper >= count {
		return sorted[lower]
	}

	frac := idx - float64(lower)

	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// Median returns the 50th percentile of values.
// Returns 0 for an empty slice.
func Median(values []float64) float64 {
	return Percentile(values, PercentileMedian)
}

// ClipQuantiles returns the values within the [qmin, qmax] quantile range of
// the distribution, preserving order. Means of heavy-tailed execution-time
// distributions are taken over the clipped sample so outlier runs do not
// dominate. The full [0, 1] range returns the input unchanged.
func ClipQuantiles(values []float64, qmin, qmax float64) []float64 {
	if len(values) == 0 || (qmin <= 0 && qmax >= 1) {
		return values
	}

	low := Percentile(values, qmin)
	high := Percentile(values, qmax)

	clipped := make([]float64, 0, len(values))

	for _, v := range values {
		if v >= low && v <= high {
			clipped = append(clipped, v)
		}
	}

	return clipped
}

// Share returns the fraction of values for which keep returns true.
// Returns 0 for an empty slice.
func Share(values []float64, keep func(float64) bool) float64 {
	if len(values) == 0 {
		return 0
	}

	count := 0

	for _, v := range values {
		if keep(v) {
			count++
		}
	}

	return float64(count) / float64(len(values))
}
