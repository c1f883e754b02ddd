// Package fold implements the short-circuiting best-fit scan the
// freelist uses to pick an allocation candidate without walking its
// entire extent sequence on every call.
package fold

import "cmp"

// Seq is a pull-based sequence: each call returns the next item, or
// ok=false once exhausted. It exists so MaxByKeyWithCutoff can scan a
// multi-chunk chain lazily instead of requiring the caller to
// materialize every item up front.
type Seq[T any] func() (item T, ok bool)

// MaxByKeyWithCutoff scans seq and returns either the first item whose
// key is >= cutoff (short-circuiting the scan the moment one is found),
// or, if none qualifies, the item with the largest key seen. found is
// false only if seq yielded nothing at all.
//
// Ties are first-wins in both cases: among several items with key >=
// cutoff, the earliest encountered is returned (since the scan stops
// there); among items all below cutoff, a later item only replaces the
// running best if its key is strictly greater.
func MaxByKeyWithCutoff[T any, K cmp.Ordered](seq Seq[T], key func(T) K, cutoff K) (best T, found bool) {
	for {
		item, ok := seq()
		if !ok {
			return best, found
		}
		k := key(item)
		if k >= cutoff {
			return item, true
		}
		if !found || k > key(best) {
			best = item
			found = true
		}
	}
}
