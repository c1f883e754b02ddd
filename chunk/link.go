package chunk

import (
	"math"
	"unsafe"
)

// This file provides the three link-discipline accessor families that
// interpret a Chunk's opaque next-hint word. All three share the same
// 8-byte field; only the interpretation differs, which is what lets the
// freelist reinterpret a slab cell between disciplines without moving
// it.

// --- owning pointer discipline (package anchor) ---

// NextOwningPtr decodes the next-hint word as an owning pointer to a
// successor Chunk[T], or nil if this chunk has no successor. The zero
// value of next (the chunk's default state) correctly decodes to nil.
func (c *Chunk[T]) NextOwningPtr() *Chunk[T] {
	return (*Chunk[T])(unsafe.Pointer(uintptr(c.next)))
}

// SetNextOwningPtr stores p (or clears the link, if p is nil) as the
// owning successor pointer.
func (c *Chunk[T]) SetNextOwningPtr(p *Chunk[T]) {
	c.next = uint64(uintptr(unsafe.Pointer(p)))
}

// --- raw (non-owning) pointer discipline ---
//
// Bit-identical to the owning discipline; kept as a distinct name purely
// for documentation/call-site clarity about ownership.

// NextRawPtr decodes the next-hint word as a non-owning pointer.
func (c *Chunk[T]) NextRawPtr() *Chunk[T] { return c.NextOwningPtr() }

// SetNextRawPtr stores a non-owning successor pointer.
func (c *Chunk[T]) SetNextRawPtr(p *Chunk[T]) { c.SetNextOwningPtr(p) }

// --- slab index discipline (packages slabcursor and freelist) ---

// EmptySlabIndex is the sentinel next-hint value meaning "no successor"
// for slab-index sequences. It is deliberately not zero: index 0 is a
// perfectly valid slab cell.
const EmptySlabIndex uint32 = math.MaxUint32

// NextIndex decodes the next-hint word as a slab cell index, or
// EmptySlabIndex if there is no successor.
func (c *Chunk[T]) NextIndex() uint32 { return uint32(c.next) }

// SetNextIndex stores idx as the next-hint slab index. Callers
// initializing a fresh slab-resident chunk for slab-index use must call
// this explicitly (with EmptySlabIndex) since a freshly zeroed chunk's
// next-hint decodes as index 0, not "empty", under this discipline.
func (c *Chunk[T]) SetNextIndex(idx uint32) { c.next = uint64(idx) }

// HasNextIndex reports whether the slab-index next-hint refers to a
// successor.
func (c *Chunk[T]) HasNextIndex() bool { return c.NextIndex() != EmptySlabIndex }

// HasNextPtr reports whether the owning/raw-pointer next-hint refers to a
// successor.
func (c *Chunk[T]) HasNextPtr() bool { return c.NextOwningPtr() != nil }
