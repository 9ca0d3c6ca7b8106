// Package overlap computes per-interval concurrency ratios: for every time
// interval in a collection partitioned into independent groups, the
// time-weighted average number of simultaneously active intervals (including
// itself) during the interval's own lifetime.
//
// The computation is a pure in-memory transform built from five stages: input
// validation and timestamp normalization, key bit-width planning, event
// encoding into fixed-width packed keys, one global sort, and a per-group
// sweep that accumulates concurrency-weighted durations. A single sort over
// all groups is possible because each packed key folds the group id,
// the shifted timestamp, and the interval's local index into one uint64,
// making the sorted key stream group-contiguous.
//
// An interval is always active during its own lifetime, so every returned
// ratio is >= 1. Ratios above 1 indicate concurrent execution.
package overlap

import (
	"errors"
	"fmt"
	"math/bits"
	"slices"
)

// Sentinel errors for precondition violations. All failures are detected
// before any sweep work begins; a failed call produces no partial output.
var (
	// ErrInvalidInput is returned for malformed inputs: mismatched array
	// lengths, non-ascending group borders, borders inconsistent with
	// the interval count, or an interval that finishes before it starts.
	ErrInvalidInput = errors.New("overlap: invalid input")

	// ErrOverflow is returned when the group count, the largest group size,
	// and the timestamp range cannot be packed together into 64-bit keys.
	ErrOverflow = errors.New("overlap: packed key bit budget exceeded")
)

// keyWidth is the total bit width of a packed event key.
const keyWidth = 64

// layout describes how a packed key splits into fields. From most significant
// to least significant bits: group id, shifted timestamp, local index.
type layout struct {
	indexBits int
	groupBits int
	timeBits  int
}

// groupShift returns the left shift that positions a group id in a key.
func (l layout) groupShift() int {
	return l.timeBits + l.indexBits
}

// groupMask returns the mask that clears the group id bits of a key.
func (l layout) groupMask() uint64 {
	return ^uint64(0) >> l.groupBits
}

// indexMask returns the mask that extracts the local index from a key.
func (l layout) indexMask() uint64 {
	return 1<<l.indexBits - 1
}

// ComputeRatios calculates the concurrency ratio of every interval.
//
// starts and finishes must have equal length N, hold timestamps in a shared
// unit, and satisfy finishes[i] >= starts[i]. borders is a strictly ascending
// sequence of cumulative interval counts splitting the input into contiguous
// independent groups; borders[len(borders)-1] must equal N. An empty input
// yields an empty result.
//
// The caller's slices are never modified: timestamp shifting and zero-length
// correction happen on private copies. A zero-length interval is widened to
// one time unit, and that adjusted duration is what the ratio is normalized
// by. The result preserves the input order and every ratio is >= 1.
func ComputeRatios(starts, finishes []uint64, borders []uint64) ([]float64, error) {
	return compute(starts, finishes, borders, sweepGroups)
}

// compute runs the full pipeline, delegating the per-group sweeps to run.
func compute(starts, finishes, borders []uint64, run sweepRunner) ([]float64, error) {
	err := validate(starts, finishes, borders)
	if err != nil {
		return nil, err
	}

	if len(starts) == 0 {
		return []float64{}, nil
	}

	adjStarts, adjFinishes, maxShifted := normalize(starts, finishes)

	keyLayout, err := planLayout(borders, maxShifted)
	if err != nil {
		return nil, err
	}

	keys := encodeEvents(adjStarts, adjFinishes, borders, keyLayout)
	slices.Sort(keys)
	stripGroupBits(keys, keyLayout)

	raw := make([]float64, len(starts))
	run(keys, borders, keyLayout, raw)

	ratios := raw
	for i := range ratios {
		ratios[i] /= float64(adjFinishes[i] - adjStarts[i])
	}

	return ratios, nil
}

// sweepRunner executes the per-group sweeps over the sorted, group-stripped
// key stream, writing concurrency-weighted durations into raw.
type sweepRunner func(keys []uint64, borders []uint64, keyLayout layout, raw []float64)

// validate checks the input contract: equal lengths, strictly ascending
// borders covering exactly the interval count, and no negative durations.
func validate(starts, finishes, borders []uint64) error {
	if len(starts) != len(finishes) {
		return fmt.Errorf("%w: %d starts vs %d finishes", ErrInvalidInput, len(starts), len(finishes))
	}

	total := uint64(len(starts))

	if len(borders) == 0 {
		if total != 0 {
			return fmt.Errorf("%w: empty borders for %d intervals", ErrInvalidInput, total)
		}

		return nil
	}

	prev := uint64(0)

	for k, border := range borders {
		if k > 0 && border <= prev {
			return fmt.Errorf("%w: borders not strictly ascending at %d", ErrInvalidInput, k)
		}

		prev = border
	}

	if prev != total {
		return fmt.Errorf("%w: last border %d does not match interval count %d", ErrInvalidInput, prev, total)
	}

	for i := range starts {
		if finishes[i] < starts[i] {
			return fmt.Errorf("%w: interval %d finishes before it starts", ErrInvalidInput, i)
		}
	}

	return nil
}

// normalize copies the timestamp arrays, shifts them down by the global
// minimum start, and widens zero-length intervals to one time unit. It
// returns the adjusted copies and the maximum shifted timestamp.
func normalize(starts, finishes []uint64) (adjStarts, adjFinishes []uint64, maxShifted uint64) {
	minStart := starts[0]
	for _, s := range starts[1:] {
		if s < minStart {
			minStart = s
		}
	}

	adjStarts = make([]uint64, len(starts))
	adjFinishes = make([]uint64, len(finishes))

	for i := range starts {
		adjStarts[i] = starts[i] - minStart
		adjFinishes[i] = finishes[i] - minStart

		if adjFinishes[i] == adjStarts[i] {
			adjFinishes[i]++
		}

		if adjFinishes[i] > maxShifted {
			maxShifted = adjFinishes[i]
		}
	}

	return adjStarts, adjFinishes, maxShifted
}

// planLayout derives the key field widths from the group geometry. The local
// index field must address the largest group, the group field must address
// every group, and whatever remains must hold the maximum shifted timestamp.
// Exceeding the 64-bit budget is a hard precondition violation, never a
// silent truncation.
func planLayout(borders []uint64, maxShifted uint64) (layout, error) {
	maxGroupSize := borders[0]
	prev := uint64(0)

	for _, border := range borders {
		if size := border - prev; size > maxGroupSize {
			maxGroupSize = size
		}

		prev = border
	}

	keyLayout := layout{
		indexBits: bitsFor(maxGroupSize),
		groupBits: bitsFor(uint64(len(borders))),
	}

	if keyLayout.indexBits+keyLayout.groupBits >= keyWidth {
		return layout{}, fmt.Errorf("%w: %d index bits + %d group bits", ErrOverflow, keyLayout.indexBits, keyLayout.groupBits)
	}

	keyLayout.timeBits = keyWidth - keyLayout.indexBits - keyLayout.groupBits

	if keyLayout.timeBits < keyWidth && maxShifted >= 1<<keyLayout.timeBits {
		return layout{}, fmt.Errorf(
			"%w: timestamp range needs %d bits, %d available",
			ErrOverflow, bits.Len64(maxShifted), keyLayout.timeBits)
	}

	return keyLayout, nil
}

// bitsFor returns the number of bits needed to address count items, i.e. the
// bit length of the largest zero-based index. Zero for counts of 0 or 1.
func bitsFor(count uint64) int {
	if count == 0 {
		return 0
	}

	return bits.Len64(count - 1)
}

// encodeEvents expands every interval into one start event and one finish
// event, each packed as (group id, shifted timestamp, local index) in one
// uint64. Each local index occurs in exactly two events of its group; the
// sweep relies on that to infer the event type from set membership alone.
//
// Keys are pairwise distinct: events of one interval differ in timestamp
// (zero-length intervals were widened) and events of different intervals in
// the same group at the same timestamp differ in local index, so the
// subsequent unstable sort is deterministic.
func encodeEvents(adjStarts, adjFinishes, borders []uint64, keyLayout layout) []uint64 {
	keys := make([]uint64, 0, 2*len(adjStarts))

	groupStart := uint64(0)

	for g, border := range borders {
		groupField := uint64(g) << keyLayout.groupShift()

		for i := groupStart; i < border; i++ {
			localIndex := i - groupStart
			keys = append(keys, groupField|adjStarts[i]<<keyLayout.indexBits|localIndex)
			keys = append(keys, groupField|adjFinishes[i]<<keyLayout.indexBits|localIndex)
		}

		groupStart = border
	}

	return keys
}

// stripGroupBits masks the group id out of every sorted key. The remaining
// (timestamp, local index) values stay sorted within each group, and the
// group slices are recovered from the border offsets instead.
func stripGroupBits(keys []uint64, keyLayout layout) {
	if keyLayout.groupBits == 0 {
		return
	}

	mask := keyLayout.groupMask()
	for i := range keys {
		keys[i] &= mask
	}
}

// sweepGroups runs every group's sweep sequentially.
func sweepGroups(keys []uint64, borders []uint64, keyLayout layout, raw []float64) {
	maxGroupSize := uint64(0)
	prev := uint64(0)

	for _, border := range borders {
		if size := border - prev; size > maxGroupSize {
			maxGroupSize = size
		}

		prev = border
	}

	open := newOpenSet(int(maxGroupSize))
	prev = 0

	for _, border := range borders {
		sweepGroup(keys[2*prev:2*border], keyLayout, raw[prev:border], open)
		prev = border
	}
}

// sweepGroup walks one group's sorted events. Every event first charges all
// currently open intervals with the concurrency-weighted time elapsed since
// the previous event, then toggles the membership of its own local index:
// an absent index is inserted (the event is that interval's start) and a
// present one is removed (its finish). The event type is never stored; it is
// inferred purely from membership, which is sound because the encoder emits
// each local index exactly twice per group.
func sweepGroup(keys []uint64, keyLayout layout, raw []float64, open *openSet) {
	indexMask := keyLayout.indexMask()
	prevTimestamp := uint64(0)

	for _, key := range keys {
		timestamp := key >> keyLayout.indexBits
		localIndex := int(key & indexMask)

		if span := timestamp - prevTimestamp; span != 0 && open.size > 0 {
			delta := float64(span) * float64(open.size)

			for i := open.head; i != noIndex; i = open.next[i] {
				raw[i] += delta
			}
		}

		open.toggle(localIndex)

		prevTimestamp = timestamp
	}

	if open.size != 0 {
		panic("overlap: open set not empty after group sweep")
	}

	open.reset()
}
