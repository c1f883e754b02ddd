package anchor

import "sort"

// Search locates needle within m's chain, starting with the chunk m's
// next Next call yields (the first chunk, for a fresh cursor) and
// scanning forward. It does a linear scan across
// chunks to find the one that could contain needle, then a binary
// search within that chunk.
//
// "Could contain" uses a past-min latch: once needle is seen to be >=
// the first element of some chunk, every later chunk is a candidate
// (since chunks are internally sorted and chained in non-decreasing
// order); the scan commits to the first chunk after that point whose
// last element is >= needle. A needle that sorts before the first
// element of the first non-empty chunk scanned is reported at position 0
// of that chunk. If no chunk matches, the last chunk in the chain is the
// insertion point, right past its final element.
//
// Returns (offset, pos, true) if needle was found at pos within the
// offset-th chunk visited (1-indexed, matching the number of Next calls
// made); returns (offset, pos, false) with pos as the sorted insertion
// point if needle was not found. If there are repeated elements, any
// matching element may be reported.
func (m *MutCursor[T]) Search(needle T, less func(a, b T) bool) (offset int, pos int, found bool) {
	pastMin := false
	count := 0
	for {
		c := m.Next()
		if c == nil {
			break
		}
		count++
		elems := c.Elements()
		if len(elems) == 0 {
			if !m.HasNext() {
				return count, 0, false
			}
			continue
		}
		first, last := elems[0], elems[len(elems)-1]

		if !less(needle, first) {
			pastMin = true
		} else if !pastMin {
			// needle sorts before every element scanned so far
			return count, 0, false
		}

		if pastMin && !less(last, needle) {
			idx := sort.Search(len(elems), func(i int) bool {
				return !less(elems[i], needle)
			})
			if idx < len(elems) && !less(needle, elems[idx]) && !less(elems[idx], needle) {
				return count, idx, true
			}
			return count, idx, false
		}

		if !m.HasNext() {
			return count, len(elems), false
		}
	}
	// only reachable when the anchor owns no chunks at all
	return 0, 0, false
}
