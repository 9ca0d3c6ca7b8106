package concurrency

import (
	"time"

	"github.com/vmarkovtsev/athenian-api/pkg/alg/stats"
)

// TimelinePoint is one chart bucket of an analysis result.
type TimelinePoint struct {
	// Start is the bucket's inclusive lower boundary.
	Start time.Time `json:"start"`

	// Count is the number of runs started inside the bucket.
	Count int `json:"count"`

	// MeanRatio is the mean concurrency ratio of those runs, 0 when empty.
	MeanRatio float64 `json:"mean_ratio"`

	// MaxRatio is the highest concurrency ratio of those runs, 0 when empty.
	MaxRatio float64 `json:"max_ratio"`
}

// Timeline buckets the analyzed runs by start time over the given boundary
// sequence (as produced by the timeline package) and aggregates each
// bucket's ratios. Buckets are half-open [boundaries[i], boundaries[i+1])
// except the last, which also admits its upper boundary; runs outside the
// covered range are ignored. Returns one point per bucket.
func Timeline(result *Result, boundaries []time.Time) []TimelinePoint {
	if len(boundaries) < 2 {
		return nil
	}

	points := make([]TimelinePoint, len(boundaries)-1)
	ratios := make([][]float64, len(points))

	for i := range points {
		points[i].Start = boundaries[i]
	}

	for _, run := range result.Runs {
		idx := bucketIndex(boundaries, run.StartedAt)
		if idx < 0 {
			continue
		}

		points[idx].Count++
		ratios[idx] = append(ratios[idx], run.Ratio)

		if run.Ratio > points[idx].MaxRatio {
			points[idx].MaxRatio = run.Ratio
		}
	}

	for i := range points {
		points[i].MeanRatio = stats.Mean(ratios[i])
	}

	return points
}

// bucketIndex locates the half-open bucket containing ts, or -1. The final
// bucket is closed so a run starting exactly at the range end is kept.
func bucketIndex(boundaries []time.Time, ts time.Time) int {
	for i := 0; i < len(boundaries)-1; i++ {
		if !ts.Before(boundaries[i]) && ts.Before(boundaries[i+1]) {
			return i
		}
	}

	if ts.Equal(boundaries[len(boundaries)-1]) {
		return len(boundaries) - 2
	}

	return -1
}
