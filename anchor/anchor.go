// Package anchor implements an owning, singly linked sequence of
// page-sized chunks, reachable only from the front. An Anchor is not a
// container in its own right -- it only owns the first chunk, if any;
// every interesting per-element operation lives on the mutable cursor
// returned by Mutate.
package anchor

import (
	"github.com/djugei/block-layer/chunk"
)

// Anchor owns an optional first chunk of a singly linked, owning-pointer
// sequence. It does not allocate until a chunk is actually needed,
// unless constructed via NewEmpty.
//
// Chunks must only enter the chain through Anchor/MutCursor methods:
// the next-hint words linking the chain are opaque to the garbage
// collector, so the anchor additionally keeps a direct reference to
// every chunk it owns. A chunk linked in manually via SetNextOwningPtr
// would be invisible to the collector's reachability scan.
type Anchor[T any] struct {
	start *chunk.Chunk[T]
	// refs holds every chunk of the chain, keeping the chunks' backing
	// allocations reachable.
	refs []*chunk.Chunk[T]
}

// New returns an empty Anchor that owns no storage yet.
func New[T any]() *Anchor[T] {
	return &Anchor[T]{}
}

// NewEmpty returns an Anchor that already owns one allocated, empty
// chunk, for callers that want Cursor.Next to yield a usable chunk
// immediately rather than nil.
func NewEmpty[T any]() *Anchor[T] {
	start := chunk.NewAligned[T]()
	return &Anchor[T]{start: start, refs: []*chunk.Chunk[T]{start}}
}

// Empty reports whether the anchor owns no chunk at all.
func (a *Anchor[T]) Empty() bool { return a.start == nil }

// Close walks the owned chain and releases every chunk, iteratively
// rather than recursively so that an arbitrarily long sequence cannot
// overflow the call stack during teardown.
func (a *Anchor[T]) Close() {
	cur := a.start
	for cur != nil {
		next := cur.NextOwningPtr()
		cur.SetNextOwningPtr(nil)
		cur = next
	}
	a.start = nil
	a.refs = nil
}
