// Package slabcursor implements read-only and exclusive traversal over
// slab-index linked sequences: chains of chunk.Chunk[T] cells living
// inside a shared slab.Slab, linked by slab cell index rather than by
// pointer (see chunk.Chunk.NextIndex / SetNextIndex).
//
// Unlike package anchor's owning pointer chains, a slab-index chain does
// not own its storage -- the slab outlives any individual cursor over
// it, and several chains may be threaded through disjoint regions of the
// same slab at once (the freelist's own chunk-of-extents chain is one
// such chain). Cursor and MutCursor exist as distinct named types, even
// though Go gives them no different access rights at compile time,
// purely to keep call sites honest about whether a traversal intends to
// mutate.
package slabcursor

import (
	"github.com/djugei/block-layer/chunk"
	"github.com/djugei/block-layer/slab"
)

// Cursor is a read-only traversal over a slab-index chain starting at a
// given cell.
type Cursor[T any] struct {
	s       *slab.Slab
	current uint32
}

// New returns a Cursor starting at cell start within s.
func New[T any](s *slab.Slab, start uint32) *Cursor[T] {
	return &Cursor[T]{s: s, current: start}
}

// Next returns the cell index and chunk at the cursor's current position
// and advances to its successor, or ok=false once the chain's empty
// sentinel is reached.
func (c *Cursor[T]) Next() (idx uint32, ch *chunk.Chunk[T], ok bool) {
	if c.current == chunk.EmptySlabIndex {
		return 0, nil, false
	}
	idx = c.current
	ch = slab.CellAt[T](c.s, int(idx))
	c.current = ch.NextIndex()
	return idx, ch, true
}

// Reborrow returns an independent child cursor positioned at the same
// cell, leaving c itself untouched. This lets a caller peek ahead (for
// example the freelist checking a successor's first extent) without
// losing its own place in the chain.
func (c *Cursor[T]) Reborrow() *Cursor[T] {
	return &Cursor[T]{s: c.s, current: c.current}
}

// Current reports the cell index the cursor would next yield.
func (c *Cursor[T]) Current() uint32 { return c.current }

// MutCursor is an exclusive traversal over a slab-index chain. Its
// access pattern is otherwise identical to Cursor; the distinction
// exists so call sites that intend to mutate yielded chunks (and so must
// not run concurrently with any other cursor over the same chain) are
// visibly different from ones that only read.
type MutCursor[T any] struct {
	Cursor[T]
}

// NewMut returns a MutCursor starting at cell start within s.
func NewMut[T any](s *slab.Slab, start uint32) *MutCursor[T] {
	return &MutCursor[T]{Cursor: Cursor[T]{s: s, current: start}}
}

// Reborrow returns an independent child MutCursor positioned at the same
// cell.
func (m *MutCursor[T]) Reborrow() *MutCursor[T] {
	return &MutCursor[T]{Cursor: *m.Cursor.Reborrow()}
}
