package overlap

// noIndex terminates the active list.
const noIndex = -1

// openSet tracks which local indices are currently active during a sweep.
// Membership is a boolean presence array for O(1) toggling, and the active
// indices are additionally threaded through a doubly linked list so that
// charging every open interval costs exactly the current concurrency, not
// the group size. Iteration order carries no meaning for correctness.
//
// One openSet sized to the largest group is reused across all group sweeps.
type openSet struct {
	present []bool
	next    []int
	prev    []int
	head    int
	size    int
}

// newOpenSet creates an empty set able to hold local indices below capacity.
func newOpenSet(capacity int) *openSet {
	return &openSet{
		present: make([]bool, capacity),
		next:    make([]int, capacity),
		prev:    make([]int, capacity),
		head:    noIndex,
		size:    0,
	}
}

// toggle flips the membership of a local index: absent indices are inserted
// at the front of the active list, present ones are unlinked.
func (s *openSet) toggle(index int) {
	if s.present[index] {
		s.remove(index)

		return
	}

	s.insert(index)
}

// insert links an absent index at the front of the active list.
func (s *openSet) insert(index int) {
	s.present[index] = true
	s.prev[index] = noIndex
	s.next[index] = s.head

	if s.head != noIndex {
		s.prev[s.head] = index
	}

	s.head = index
	s.size++
}

// remove unlinks a present index from the active list.
func (s *openSet) remove(index int) {
	s.present[index] = false

	if s.prev[index] != noIndex {
		s.next[s.prev[index]] = s.next[index]
	} else {
		s.head = s.next[index]
	}

	if s.next[index] != noIndex {
		s.prev[s.next[index]] = s.prev[index]
	}

	s.size--
}

// reset empties the set. A balanced sweep leaves nothing behind, so only the
// list anchors need restoring; the presence array is already all false.
func (s *openSet) reset() {
	s.head = noIndex
	s.size = 0
}
