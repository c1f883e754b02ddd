// Package slab provides the externally owned, page-aligned backing
// storage that slab-index link sequences (packages slabcursor and
// freelist) are built on top of.
//
// A Slab is a single fixed-size array of PageSize-byte cells, allocated
// once and never resized or reallocated: chunks hold interior pointers
// and slab-index links into it, so cell addresses must stay stable for
// the slab's whole lifetime. Each cell is raw, type-erased storage that
// callers reinterpret as a chunk.Chunk[T] via CellAt, which is what
// allows one untyped cell array to back sequences of several element
// types at once.
package slab

import (
	"unsafe"

	"github.com/pkg/errors"

	"github.com/djugei/block-layer/chunk"
)

// Slab is a fixed-length array of page-aligned, PageSize-byte cells.
type Slab struct {
	mem   []byte // over-allocated by one page; cells live at the aligned offset.
	base  int    // byte offset into mem of cell 0.
	cells int

	numCellsTouched int64 // diagnostic: distinct cells ever reinterpreted via CellAt.
	touched         []bool
}

// New allocates a Slab with room for exactly cells page-sized slots.
// Returns an error if cells <= 0.
func New(cells int) (*Slab, error) {
	if cells <= 0 {
		return nil, errors.Errorf("slab: cell count must be positive, got %d", cells)
	}
	mem := make([]byte, cells*chunk.PageSize+chunk.PageSize)
	addr := uintptr(unsafe.Pointer(&mem[0]))
	base := int((chunk.PageSize - addr%chunk.PageSize) % chunk.PageSize)
	return &Slab{
		mem:     mem,
		base:    base,
		cells:   cells,
		touched: make([]bool, cells),
	}, nil
}

// Len returns the number of cells in the slab.
func (s *Slab) Len() int { return s.cells }

// cellBytes returns the raw backing bytes for cell i, which must be in
// [0, Len()).
func (s *Slab) cellBytes(i int) []byte {
	beg := s.base + i*chunk.PageSize
	return s.mem[beg : beg+chunk.PageSize : beg+chunk.PageSize]
}

// CellAt reinterprets cell i of s as a *chunk.Chunk[T]. A given cell
// must only ever be reinterpreted as one T for as long as it is part of
// a live sequence; switching element types is only legal through
// InitCellAt, at which point any previous contents are dead.
func CellAt[T any](s *Slab, i int) *chunk.Chunk[T] {
	if i < 0 || i >= s.cells {
		panic(errors.Errorf("slab: cell index %d out of bounds (len=%d)", i, s.cells))
	}
	if !s.touched[i] {
		s.touched[i] = true
		s.numCellsTouched++
	}
	return (*chunk.Chunk[T])(unsafe.Pointer(&s.cellBytes(i)[0]))
}

// InitCellAt reinterprets cell i as a *chunk.Chunk[T] and resets it to
// the empty state, discarding whatever was previously stored there. Use
// this when a cell is being claimed for a new purpose (for example, the
// freelist allocating a fresh Entry-chunk cell).
func InitCellAt[T any](s *Slab, i int) *chunk.Chunk[T] {
	return chunk.Initialize[T](CellAt[T](s, i))
}

// Stats fills an input map with runtime diagnostics about the slab,
// echoing the counter-map convention this package's layout is
// descended from.
func (s *Slab) Stats(m map[string]int64) map[string]int64 {
	m["cells"] = int64(s.cells)
	m["cellsTouched"] = s.numCellsTouched
	return m
}
