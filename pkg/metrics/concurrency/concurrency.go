// Package concurrency derives CI concurrency metrics from check-run
// intervals. Completed runs are partitioned into independent groups (one per
// repository, optionally split further into time buckets), every group's
// per-run concurrency ratios are computed with the interval overlap
// accumulator, and each group is summarized with ratio and execution-time
// statistics. A ratio above 1 means the run shared part of its lifetime with
// other runs of the same group — evidence of concurrent execution.
package concurrency

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/vmarkovtsev/athenian-api/pkg/alg/overlap"
	"github.com/vmarkovtsev/athenian-api/pkg/alg/stats"
	"github.com/vmarkovtsev/athenian-api/pkg/checkrun"
	"github.com/vmarkovtsev/athenian-api/pkg/safeconv"
)

// ConcurrentThreshold is the ratio above which a run counts as concurrent.
const ConcurrentThreshold = 1.0

// ErrTimestampRange is returned when a completed run carries a timestamp
// before the Unix epoch, which the packed-key encoding cannot represent.
var ErrTimestampRange = errors.New("concurrency: check run timestamp before 1970")

// Options tunes an analysis.
type Options struct {
	// Quantiles clips the elapsed-time distribution before taking the mean,
	// as [min, max] quantiles in [0, 1]. The zero value [0, 0] means no
	// clipping (treated as [0, 1]).
	Quantiles [2]float64

	// BucketSize splits every repository group into time buckets of this
	// length (runs started in different buckets never count as concurrent
	// with each other). Zero keeps one group per repository.
	BucketSize time.Duration

	// Workers bounds the parallel group sweeps. One runs sequentially;
	// zero or negative selects one worker per CPU.
	Workers int
}

// Summary aggregates one group's concurrency metrics.
type Summary struct {
	// Repository is the group's repository name.
	Repository string `json:"repository"`

	// Bucket is the group's time bucket start; zero without bucketing.
	Bucket time.Time `json:"bucket,omitzero"`

	// Count is the number of completed runs in the group.
	Count int `json:"count"`

	// Successes, Failures, and Skips count run outcomes.
	Successes int `json:"successes"`
	Failures  int `json:"failures"`
	Skips     int `json:"skips"`

	// MeanRatio, MedianRatio, and P95Ratio summarize the per-run
	// concurrency ratio distribution. Every ratio is >= 1.
	MeanRatio   float64 `json:"mean_ratio"`
	MedianRatio float64 `json:"median_ratio"`
	P95Ratio    float64 `json:"p95_ratio"`

	// ConcurrentShare is the fraction of runs with ratio > 1.
	ConcurrentShare float64 `json:"concurrent_share"`

	// MeanElapsed and MedianElapsed summarize execution times. The mean is
	// taken over the quantile-clipped distribution.
	MeanElapsed   time.Duration `json:"mean_elapsed"`
	MedianElapsed time.Duration `json:"median_elapsed"`
}

// Run pairs one completed check run with its concurrency ratio.
type Run struct {
	checkrun.CheckRun

	// Ratio is the time-weighted average number of simultaneously active
	// runs (including this one) during the run's lifetime.
	Ratio float64 `json:"ratio"`
}

// Result is a complete analysis output.
type Result struct {
	// Summaries holds one entry per group, sorted by repository then bucket.
	Summaries []Summary `json:"summaries"`

	// Runs holds the completed runs in group order with their ratios.
	Runs []Run `json:"runs"`
}

// Analyze computes concurrency metrics for the given check runs. Runs that
// are not in a terminal state or lack timestamps are dropped up front. The
// context only matters for parallel sweeps (Options.Workers).
func Analyze(ctx context.Context, runs []checkrun.CheckRun, opts Options) (*Result, error) {
	completed := checkrun.FilterCompleted(runs)
	if len(completed) == 0 {
		return &Result{}, nil
	}

	grouped, borders := groupRuns(completed, opts.BucketSize)

	starts := make([]uint64, len(grouped))
	finishes := make([]uint64, len(grouped))

	for i, run := range grouped {
		if run.StartedAt.Unix() < 0 || run.CompletedAt.Unix() < 0 {
			return nil, fmt.Errorf("%w: %s/%s started %s", ErrTimestampRange,
				run.Repository, run.Name, run.StartedAt.Format(time.RFC3339))
		}

		starts[i] = safeconv.MustInt64ToUint64(run.StartedAt.Unix())
		finishes[i] = safeconv.MustInt64ToUint64(run.CompletedAt.Unix())
	}

	ratios, err := computeRatios(ctx, starts, finishes, borders, opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("compute concurrency ratios: %w", err)
	}

	result := &Result{
		Runs:      make([]Run, len(grouped)),
		Summaries: make([]Summary, 0, len(borders)),
	}

	for i, run := range grouped {
		result.Runs[i] = Run{CheckRun: run, Ratio: ratios[i]}
	}

	low := uint64(0)

	for _, border := range borders {
		group := result.Runs[low:border]
		result.Summaries = append(result.Summaries, summarize(group, opts))
		low = border
	}

	return result, nil
}

// computeRatios dispatches between the sequential and parallel accumulator.
// Exactly one worker runs sequentially; anything else (including the zero
// default) fans out, with one worker per CPU for non-positive counts.
func computeRatios(ctx context.Context, starts, finishes, borders []uint64, workers int) ([]float64, error) {
	if workers == 1 {
		return overlap.ComputeRatios(starts, finishes, borders)
	}

	return overlap.ComputeRatiosParallel(ctx, starts, finishes, borders, workers)
}

// groupKey identifies one independent group.
type groupKey struct {
	repository string
	bucket     time.Time
}

// bucketOf truncates a start time into its bucket, normalized to UTC so that
// the same instant always yields the same key regardless of the timestamp's
// original offset.
func bucketOf(ts time.Time, bucketSize time.Duration) time.Time {
	return ts.UTC().Truncate(bucketSize)
}

// groupRuns orders the runs contiguously by group and derives the cumulative
// border sequence. Group order is deterministic: repositories sorted
// lexicographically, buckets chronologically within a repository.
func groupRuns(runs []checkrun.CheckRun, bucketSize time.Duration) ([]checkrun.CheckRun, []uint64) {
	keyOf := func(run checkrun.CheckRun) groupKey {
		key := groupKey{repository: run.Repository}
		if bucketSize > 0 {
			key.bucket = bucketOf(run.StartedAt, bucketSize)
		}

		return key
	}

	ordered := slices.Clone(runs)
	slices.SortStableFunc(ordered, func(a, b checkrun.CheckRun) int {
		ka, kb := keyOf(a), keyOf(b)

		if cmp := strings.Compare(ka.repository, kb.repository); cmp != 0 {
			return cmp
		}

		return ka.bucket.Compare(kb.bucket)
	})

	borders := make([]uint64, 0, 8)

	for i := 1; i < len(ordered); i++ {
		if keyOf(ordered[i]) != keyOf(ordered[i-1]) {
			borders = append(borders, uint64(i))
		}
	}

	borders = append(borders, uint64(len(ordered)))

	return ordered, borders
}

// summarize computes one group's Summary.
func summarize(group []Run, opts Options) Summary {
	first := group[0].CheckRun

	summary := Summary{
		Repository: first.Repository,
		Count:      len(group),
	}

	if opts.BucketSize > 0 {
		summary.Bucket = bucketOf(first.StartedAt, opts.BucketSize)
	}

	ratios := make([]float64, len(group))
	elapsed := make([]float64, len(group))

	for i, run := range group {
		ratios[i] = run.Ratio
		elapsed[i] = run.Elapsed().Seconds()

		switch {
		case run.Succeeded():
			summary.Successes++
		case run.Failed():
			summary.Failures++
		}

		if run.Skipped() {
			summary.Skips++
		}
	}

	summary.MeanRatio = stats.Mean(ratios)
	summary.MedianRatio = stats.Median(ratios)
	summary.P95Ratio = stats.Percentile(ratios, stats.PercentileP95)
	summary.ConcurrentShare = stats.Share(ratios, func(r float64) bool {
		return r > ConcurrentThreshold
	})

	qmin, qmax := opts.Quantiles[0], opts.Quantiles[1]
	if qmin == 0 && qmax == 0 {
		qmax = 1
	}

	clipped := stats.ClipQuantiles(elapsed, qmin, qmax)
	summary.MeanElapsed = secondsToDuration(stats.Mean(clipped))
	summary.MedianElapsed = secondsToDuration(stats.Median(elapsed))

	return summary
}

// secondsToDuration converts float seconds into a Duration.
func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
