package overlap

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Parallel test constants.
const (
	testParallelSeed    = 7
	testParallelGroups  = 64
	testParallelPerSpan = 16
	testParallelWorkers = 4
)

// buildParallelFixture generates a many-group layout for parallel tests.
func buildParallelFixture() (starts, finishes, borders []uint64) {
	rng := rand.New(rand.NewSource(testParallelSeed))

	for range testParallelGroups {
		size := 1 + rng.Intn(testParallelPerSpan)

		for range size {
			start := uint64(rng.Intn(1000))
			starts = append(starts, start)
			finishes = append(finishes, start+uint64(rng.Intn(100)))
		}

		borders = append(borders, uint64(len(starts)))
	}

	return starts, finishes, borders
}

// TestComputeRatiosParallel_MatchesSequential verifies that the parallel
// sweep is numerically identical to the sequential one.
func TestComputeRatiosParallel_MatchesSequential(t *testing.T) {
	t.Parallel()

	starts, finishes, borders := buildParallelFixture()

	sequential, err := ComputeRatios(starts, finishes, borders)
	require.NoError(t, err)

	parallel, err := ComputeRatiosParallel(
		context.Background(), starts, finishes, borders, testParallelWorkers)
	require.NoError(t, err)

	assert.Equal(t, sequential, parallel)
}

// TestComputeRatiosParallel_DefaultWorkers verifies the workers <= 0 default.
func TestComputeRatiosParallel_DefaultWorkers(t *testing.T) {
	t.Parallel()

	starts, finishes, borders := buildParallelFixture()

	sequential, err := ComputeRatios(starts, finishes, borders)
	require.NoError(t, err)

	parallel, err := ComputeRatiosParallel(context.Background(), starts, finishes, borders, 0)
	require.NoError(t, err)

	assert.Equal(t, sequential, parallel)
}

// TestComputeRatiosParallel_MoreWorkersThanGroups verifies worker clamping.
func TestComputeRatiosParallel_MoreWorkersThanGroups(t *testing.T) {
	t.Parallel()

	ratios, err := ComputeRatiosParallel(
		context.Background(),
		[]uint64{0, 5}, []uint64{10, 15}, []uint64{1, 2}, 16)
	require.NoError(t, err)
	require.Len(t, ratios, 2)
	assert.InDelta(t, 1.0, ratios[0], testEpsilon)
	assert.InDelta(t, 1.0, ratios[1], testEpsilon)
}

// TestComputeRatiosParallel_Empty verifies the empty input short circuit.
func TestComputeRatiosParallel_Empty(t *testing.T) {
	t.Parallel()

	ratios, err := ComputeRatiosParallel(context.Background(), nil, nil, nil, testParallelWorkers)
	require.NoError(t, err)
	assert.Empty(t, ratios)
}

// TestComputeRatiosParallel_Canceled verifies that a canceled context aborts
// the call with no result.
func TestComputeRatiosParallel_Canceled(t *testing.T) {
	t.Parallel()

	starts, finishes, borders := buildParallelFixture()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ratios, err := ComputeRatiosParallel(ctx, starts, finishes, borders, testParallelWorkers)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, ratios)
}

// TestComputeRatiosParallel_InvalidInput verifies validation still runs
// before any parallel work.
func TestComputeRatiosParallel_InvalidInput(t *testing.T) {
	t.Parallel()

	_, err := ComputeRatiosParallel(
		context.Background(), []uint64{10}, []uint64{5}, []uint64{1}, testParallelWorkers)
	require.ErrorIs(t, err, ErrInvalidInput)
}
