package overlap

import (
	"context"
	"runtime"
	"sync"
)

// ComputeRatiosParallel is ComputeRatios with the per-group sweeps fanned out
// over a bounded worker pool. Groups share no state, so each worker sweeps a
// contiguous chunk of groups into its disjoint slice of the output. Results
// are numerically identical to the sequential form.
//
// workers <= 0 selects one worker per CPU. The context is checked between
// group sweeps; cancellation aborts the call with the context's error and no
// result. Validation, encoding, and the global sort stay sequential: the
// sort dominates and the remaining stages are memory-bandwidth bound.
func ComputeRatiosParallel(
	ctx context.Context, starts, finishes []uint64, borders []uint64, workers int,
) ([]float64, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var canceled error

	ratios, err := compute(starts, finishes, borders,
		func(keys []uint64, groupBorders []uint64, keyLayout layout, raw []float64) {
			canceled = sweepGroupsParallel(ctx, keys, keyLayout, raw, groupBorders, workers)
		})
	if err != nil {
		return nil, err
	}

	if canceled != nil {
		return nil, canceled
	}

	return ratios, nil
}

// sweepGroupsParallel splits the group sequence into one contiguous chunk per
// worker and sweeps the chunks concurrently. Every worker owns a private
// openSet sized to the largest group of its chunk.
func sweepGroupsParallel(
	ctx context.Context, keys []uint64, keyLayout layout, raw []float64, borders []uint64, workers int,
) error {
	groupCount := len(borders)
	if workers > groupCount {
		workers = groupCount
	}

	chunkSize := (groupCount + workers - 1) / workers

	var wg sync.WaitGroup

	for w := range workers {
		first := w * chunkSize
		last := min(first+chunkSize, groupCount)

		if first >= last {
			continue
		}

		wg.Add(1)

		go func(first, last int) {
			defer wg.Done()

			sweepChunk(ctx, keys, keyLayout, raw, borders, first, last)
		}(first, last)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	return nil
}

// sweepChunk sweeps the groups in [first, last), stopping early when the
// context is canceled.
func sweepChunk(ctx context.Context, keys []uint64, keyLayout layout, raw []float64, borders []uint64, first, last int) {
	maxGroupSize := uint64(0)

	for g := first; g < last; g++ {
		if size := groupSize(borders, g); size > maxGroupSize {
			maxGroupSize = size
		}
	}

	open := newOpenSet(int(maxGroupSize))

	for g := first; g < last; g++ {
		if ctx.Err() != nil {
			return
		}

		groupStart := groupLow(borders, g)
		border := borders[g]

		sweepGroup(keys[2*groupStart:2*border], keyLayout, raw[groupStart:border], open)
	}
}

// groupLow returns the index of the first interval of group g.
func groupLow(borders []uint64, g int) uint64 {
	if g == 0 {
		return 0
	}

	return borders[g-1]
}

// groupSize returns the number of intervals in group g.
func groupSize(borders []uint64, g int) uint64 {
	return borders[g] - groupLow(borders, g)
}
