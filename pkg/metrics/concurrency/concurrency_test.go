package concurrency

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmarkovtsev/athenian-api/pkg/checkrun"
)

const testEpsilon = 1e-9

// testRun builds a completed check run.
func testRun(repo, name string, start, finish time.Time) checkrun.CheckRun {
	return checkrun.CheckRun{
		Repository:  repo,
		Name:        name,
		Status:      checkrun.StatusCompleted,
		Conclusion:  checkrun.ConclusionSuccess,
		StartedAt:   start,
		CompletedAt: finish,
	}
}

var testBase = time.Date(2023, 4, 1, 12, 0, 0, 0, time.UTC)

// at returns testBase shifted by a number of seconds.
func at(seconds int) time.Time {
	return testBase.Add(time.Duration(seconds) * time.Second)
}

// TestAnalyze_Empty verifies empty and all-incomplete inputs.
func TestAnalyze_Empty(t *testing.T) {
	t.Parallel()

	result, err := Analyze(context.Background(), nil, Options{})
	require.NoError(t, err)
	assert.Empty(t, result.Summaries)
	assert.Empty(t, result.Runs)

	pending := []checkrun.CheckRun{{Repository: "org/api", Status: "QUEUED"}}

	result, err = Analyze(context.Background(), pending, Options{})
	require.NoError(t, err)
	assert.Empty(t, result.Runs)
}

// TestAnalyze_TwoOverlappingRuns verifies the canonical 1.5 ratio scenario
// end to end through grouping and summarization.
func TestAnalyze_TwoOverlappingRuns(t *testing.T) {
	t.Parallel()

	runs := []checkrun.CheckRun{
		testRun("org/api", "build", at(0), at(10)),
		testRun("org/api", "test", at(5), at(15)),
	}

	result, err := Analyze(context.Background(), runs, Options{})
	require.NoError(t, err)
	require.Len(t, result.Runs, 2)
	require.Len(t, result.Summaries, 1)

	assert.InDelta(t, 1.5, result.Runs[0].Ratio, testEpsilon)
	assert.InDelta(t, 1.5, result.Runs[1].Ratio, testEpsilon)

	summary := result.Summaries[0]
	assert.Equal(t, "org/api", summary.Repository)
	assert.Equal(t, 2, summary.Count)
	assert.Equal(t, 2, summary.Successes)
	assert.InDelta(t, 1.5, summary.MeanRatio, testEpsilon)
	assert.InDelta(t, 1.0, summary.ConcurrentShare, testEpsilon)
	assert.Equal(t, 10*time.Second, summary.MeanElapsed)
}

// TestAnalyze_RepositoriesAreIndependent verifies that runs of different
// repositories never count as concurrent with each other.
func TestAnalyze_RepositoriesAreIndependent(t *testing.T) {
	t.Parallel()

	runs := []checkrun.CheckRun{
		testRun("org/web", "build", at(0), at(10)),
		testRun("org/api", "build", at(0), at(10)),
	}

	result, err := Analyze(context.Background(), runs, Options{})
	require.NoError(t, err)
	require.Len(t, result.Summaries, 2)

	// Sorted by repository.
	assert.Equal(t, "org/api", result.Summaries[0].Repository)
	assert.Equal(t, "org/web", result.Summaries[1].Repository)

	for _, run := range result.Runs {
		assert.InDelta(t, 1.0, run.Ratio, testEpsilon)
	}
}

// TestAnalyze_BucketsSplitGroups verifies time-bucket subgrouping.
func TestAnalyze_BucketsSplitGroups(t *testing.T) {
	t.Parallel()

	// Same repository, same wall-clock overlap pattern, but started in
	// different hour buckets: no concurrency across buckets.
	runs := []checkrun.CheckRun{
		testRun("org/api", "build", at(0), at(10)),
		testRun("org/api", "test", at(3600), at(3610)),
	}

	result, err := Analyze(context.Background(), runs, Options{BucketSize: time.Hour})
	require.NoError(t, err)
	require.Len(t, result.Summaries, 2)
	assert.False(t, result.Summaries[0].Bucket.IsZero())

	for _, run := range result.Runs {
		assert.InDelta(t, 1.0, run.Ratio, testEpsilon)
	}
}

// TestAnalyze_BucketsIgnoreTimestampOffset verifies that runs at the same
// instant land in the same bucket regardless of the offset their timestamps
// were parsed with.
func TestAnalyze_BucketsIgnoreTimestampOffset(t *testing.T) {
	t.Parallel()

	local := time.FixedZone("UTC+2", 2*3600)

	runs := []checkrun.CheckRun{
		testRun("org/api", "build", at(0), at(10)),
		testRun("org/api", "test", at(0).In(local), at(10).In(local)),
	}

	result, err := Analyze(context.Background(), runs, Options{BucketSize: time.Hour})
	require.NoError(t, err)
	require.Len(t, result.Summaries, 1)

	// Fully overlapping runs in one group: both ratios are 2.
	for _, run := range result.Runs {
		assert.InDelta(t, 2.0, run.Ratio, testEpsilon)
	}

	assert.Equal(t, time.UTC, result.Summaries[0].Bucket.Location())
}

// TestAnalyze_WorkerDefaults verifies that the zero worker default (one
// worker per CPU) matches the explicit sequential mode.
func TestAnalyze_WorkerDefaults(t *testing.T) {
	t.Parallel()

	runs := []checkrun.CheckRun{
		testRun("org/api", "build", at(0), at(10)),
		testRun("org/api", "test", at(5), at(15)),
		testRun("org/web", "build", at(0), at(10)),
	}

	byDefault, err := Analyze(context.Background(), runs, Options{})
	require.NoError(t, err)

	sequential, err := Analyze(context.Background(), runs, Options{Workers: 1})
	require.NoError(t, err)

	assert.Equal(t, sequential.Summaries, byDefault.Summaries)
	assert.Equal(t, sequential.Runs, byDefault.Runs)
}

// TestAnalyze_PreEpochTimestamp verifies that timestamps before 1970 are
// rejected instead of panicking.
func TestAnalyze_PreEpochTimestamp(t *testing.T) {
	t.Parallel()

	ancient := time.Date(1, 1, 2, 0, 0, 0, 0, time.UTC)
	runs := []checkrun.CheckRun{
		testRun("org/api", "build", ancient, ancient.Add(10*time.Second)),
	}

	result, err := Analyze(context.Background(), runs, Options{})
	require.ErrorIs(t, err, ErrTimestampRange)
	assert.Nil(t, result)
}

// TestSummaryJSON_BucketOmittedWithoutBucketing verifies that unbucketed
// summaries do not serialize a zero bucket timestamp.
func TestSummaryJSON_BucketOmittedWithoutBucketing(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Summary{Repository: "org/api", Count: 1})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "bucket")

	bucketed, err := json.Marshal(Summary{Repository: "org/api", Bucket: at(0)})
	require.NoError(t, err)
	assert.Contains(t, string(bucketed), "bucket")
}

// TestAnalyze_ParallelMatchesSequential verifies worker fan-out parity.
func TestAnalyze_ParallelMatchesSequential(t *testing.T) {
	t.Parallel()

	var runs []checkrun.CheckRun

	repos := []string{"org/a", "org/b", "org/c", "org/d"}
	for _, repo := range repos {
		for i := range 10 {
			runs = append(runs, testRun(repo, "job", at(i*3), at(i*3+20)))
		}
	}

	sequential, err := Analyze(context.Background(), runs, Options{})
	require.NoError(t, err)

	parallel, err := Analyze(context.Background(), runs, Options{Workers: 4})
	require.NoError(t, err)

	require.Len(t, parallel.Runs, len(sequential.Runs))

	for i := range sequential.Runs {
		assert.InDelta(t, sequential.Runs[i].Ratio, parallel.Runs[i].Ratio, testEpsilon)
	}

	assert.Equal(t, sequential.Summaries, parallel.Summaries)
}

// TestAnalyze_OutcomeCounts verifies success/failure/skip tallies.
func TestAnalyze_OutcomeCounts(t *testing.T) {
	t.Parallel()

	failed := testRun("org/api", "lint", at(0), at(5))
	failed.Conclusion = checkrun.ConclusionFailure

	skipped := testRun("org/api", "docs", at(0), at(5))
	skipped.Conclusion = checkrun.ConclusionNeutral

	runs := []checkrun.CheckRun{
		testRun("org/api", "build", at(0), at(5)),
		failed,
		skipped,
	}

	result, err := Analyze(context.Background(), runs, Options{})
	require.NoError(t, err)
	require.Len(t, result.Summaries, 1)

	summary := result.Summaries[0]
	assert.Equal(t, 3, summary.Count)
	assert.Equal(t, 1, summary.Successes)
	assert.Equal(t, 1, summary.Failures)
	assert.Equal(t, 1, summary.Skips)
}

// TestAnalyze_QuantileClipping verifies that elapsed-time outliers can be
// excluded from the mean.
func TestAnalyze_QuantileClipping(t *testing.T) {
	t.Parallel()

	// Four quick runs and one extreme outlier, pairwise disjoint.
	runs := []checkrun.CheckRun{
		testRun("org/api", "a", at(0), at(10)),
		testRun("org/api", "b", at(20), at(30)),
		testRun("org/api", "c", at(40), at(50)),
		testRun("org/api", "d", at(60), at(70)),
		testRun("org/api", "e", at(100), at(10100)),
	}

	unclipped, err := Analyze(context.Background(), runs, Options{})
	require.NoError(t, err)

	clipped, err := Analyze(context.Background(), runs, Options{Quantiles: [2]float64{0, 0.75}})
	require.NoError(t, err)

	assert.Greater(t, unclipped.Summaries[0].MeanElapsed, clipped.Summaries[0].MeanElapsed)
	assert.Equal(t, 10*time.Second, clipped.Summaries[0].MeanElapsed)
}

// TestAnalyze_ZeroDurationRun verifies that instantaneous runs are safe.
func TestAnalyze_ZeroDurationRun(t *testing.T) {
	t.Parallel()

	runs := []checkrun.CheckRun{testRun("org/api", "noop", at(5), at(5))}

	result, err := Analyze(context.Background(), runs, Options{})
	require.NoError(t, err)
	require.Len(t, result.Runs, 1)
	assert.InDelta(t, 1.0, result.Runs[0].Ratio, testEpsilon)
}
