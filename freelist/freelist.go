// Package freelist implements the self-hosting, slab-resident range
// allocator: a chain of Entry-typed chunks, linked by slab cell index,
// whose own bookkeeping storage is carved out of the same slab it
// tracks.
package freelist

import (
	"sort"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/pkg/errors"

	"github.com/djugei/block-layer/chunk"
	"github.com/djugei/block-layer/fold"
	"github.com/djugei/block-layer/slab"
	"github.com/djugei/block-layer/slabcursor"
)

// Freelist tracks the free cells of a slab.Slab as a sorted, merged
// sequence of run-length Entry extents, itself stored inside chunks
// resident in that same slab.
type Freelist struct {
	s       *slab.Slab
	initial uint32
	logger  *logiface.Logger[*stumpy.Event]
}

// New installs a fresh Freelist into s, rooted at cell initial. Cells
// [0, initial) are not written to but are listed as free, so Allocate
// may hand them out; a caller that keeps its own data there must mark it
// used (see MarkUsed). Cell initial holds the root extent-chunk and is
// not free; every cell from initial+1 to the end of the slab starts out
// free.
func New(s *slab.Slab, initial uint32, opts ...Option) (*Freelist, error) {
	total := uint32(s.Len())
	if initial >= total {
		return nil, errors.Errorf("freelist: initial index %d out of range for a %d-cell slab", initial, total)
	}

	root := slab.InitCellAt[Entry](s, int(initial))
	if initial > 0 {
		root.Push(Entry{Start: 0, Len: initial})
	}
	if total > initial+1 {
		root.Push(Entry{Start: initial + 1, Len: total - initial - 1})
	}
	root.SetNextIndex(chunk.EmptySlabIndex)

	f := &Freelist{s: s, initial: initial}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *Freelist) rootChunk() *chunk.Chunk[Entry] {
	return slab.CellAt[Entry](f.s, int(f.initial))
}

// candidate is one free extent reachable during an allocation scan.
type candidate struct {
	chunkID uint32
	index   int
	entry   Entry
}

// Allocate tries to satisfy count adjacent free cells via a
// best-fit-with-cutoff scan: the first sufficient extent short-circuits
// the scan; failing that, the single largest extent found is used
// instead.
//
// On full success it returns (start, count, nil). On partial success
// (some cells were available, but fewer than requested) it returns
// (start, allocated, ErrPartialAllocation) with allocated < count; the
// caller should reissue Allocate for count-allocated more cells. If
// nothing is free at all it returns (0, 0, ErrExhausted).
func (f *Freelist) Allocate(count uint32) (start uint32, allocated uint32, err error) {
	iter := slabcursor.NewMut[Entry](f.s, f.initial)
	var curID uint32
	var curChunk *chunk.Chunk[Entry]
	idx := 0
	seq := func() (candidate, bool) {
		for {
			if curChunk == nil {
				id, ch, ok := iter.Next()
				if !ok {
					return candidate{}, false
				}
				curID, curChunk, idx = id, ch, 0
			}
			elems := curChunk.Elements()
			if idx >= len(elems) {
				curChunk = nil
				continue
			}
			c := candidate{chunkID: curID, index: idx, entry: elems[idx]}
			idx++
			return c, true
		}
	}

	best, found := fold.MaxByKeyWithCutoff[candidate, uint32](seq, func(c candidate) uint32 { return c.entry.Len }, count)
	if !found {
		f.logExhausted(count)
		return 0, 0, ErrExhausted
	}

	ch := slab.CellAt[Entry](f.s, int(best.chunkID))
	elems := ch.Elements()
	entry := elems[best.index]

	toAlloc := count
	if entry.Len < toAlloc {
		toAlloc = entry.Len
	}
	start = entry.allocate(toAlloc)
	if entry.Len == 0 {
		ch.Remove(best.index)
	} else {
		elems[best.index] = entry
	}

	if ch.Len() == 0 {
		f.reclaimEmptyChunk(best.chunkID, ch)
	}

	if toAlloc == count {
		return start, toAlloc, nil
	}
	return start, toAlloc, ErrPartialAllocation
}

// predecessorOf returns the chunk whose next-index points at target, or
// false if target is the root (and so has no predecessor).
func (f *Freelist) predecessorOf(target uint32) (uint32, bool) {
	if target == f.initial {
		return 0, false
	}
	iter := slabcursor.New[Entry](f.s, f.initial)
	for {
		id, c, ok := iter.Next()
		if !ok {
			return 0, false
		}
		if c.NextIndex() == target {
			return id, true
		}
	}
}

// reclaimEmptyChunk unlinks an emptied extent-chunk from the sequence
// and recursively frees its own cell back into the freelist, except for
// the one case the structure must never drop below: an empty root with
// no successor is left in place (the slab is entirely allocated, and
// without a root chunk nothing could ever be freed again).
func (f *Freelist) reclaimEmptyChunk(id uint32, c *chunk.Chunk[Entry]) {
	next := c.NextIndex()
	if pred, ok := f.predecessorOf(id); ok {
		predChunk := slab.CellAt[Entry](f.s, int(pred))
		predChunk.SetNextIndex(next)
		f.logChunkReclaimed(id, false)
		f.Free(id, 1)
		return
	}
	if next != chunk.EmptySlabIndex {
		f.initial = next
		f.logRootPromoted(next)
		f.Free(id, 1)
	}
}

type postAdj int

const (
	postAdjNo postAdj = iota
	postAdjSame
	postAdjNext
)

// Free releases a previously allocated range of count cells starting at
// pos back into the freelist, merging it with adjacent free extents
// where possible. The caller must ensure the range is currently
// allocated exactly once; freeing an already-free range is an invariant
// violation and panics.
func (f *Freelist) Free(pos, count uint32) {
	iter := slabcursor.NewMut[Entry](f.s, f.initial)
	var chunkID uint32
	var ch *chunk.Chunk[Entry]
	for {
		id, c, ok := iter.Next()
		if !ok {
			break
		}
		chunkID, ch = id, c
		elems := c.Elements()
		if len(elems) > 0 {
			last := elems[len(elems)-1]
			if last.Start+last.Len >= pos {
				break
			}
		}
	}

	// peek at the successor without consuming the parent cursor
	var nextID uint32
	var nextCh *chunk.Chunk[Entry]
	if id, c, ok := iter.Reborrow().Next(); ok {
		nextID, nextCh = id, c
	}

	elems := ch.Elements()
	insertPos := sort.Search(len(elems), func(i int) bool { return elems[i].Start >= pos })

	preAdj := insertPos != 0 && elems[insertPos-1].Start+elems[insertPos-1].Len == pos
	expectedStart := pos + count
	if insertPos != 0 && elems[insertPos-1].Start+elems[insertPos-1].Len > pos {
		panic(errors.Errorf("freelist: double free at cell %d", pos))
	}

	adj := postAdjNo
	if insertPos == len(elems) {
		if nextCh != nil {
			if ne := nextCh.Elements(); len(ne) > 0 && ne[0].Start == expectedStart {
				adj = postAdjNext
			} else if len(ne) > 0 && ne[0].Start < expectedStart {
				panic(errors.Errorf("freelist: double free at cell %d", ne[0].Start))
			}
		}
	} else if elems[insertPos].Start == expectedStart {
		adj = postAdjSame
	} else if elems[insertPos].Start < expectedStart {
		panic(errors.Errorf("freelist: double free at cell %d", elems[insertPos].Start))
	}

	switch {
	case preAdj && adj == postAdjNo:
		elems[insertPos-1].Len += count

	case !preAdj && adj == postAdjSame:
		elems[insertPos].Start = pos
		elems[insertPos].Len += count

	case !preAdj && adj == postAdjNext:
		ne := nextCh.Elements()
		ne[0].Start = pos
		ne[0].Len += count

	case preAdj && adj == postAdjSame:
		removed, _ := ch.Remove(insertPos)
		elems = ch.Elements()
		elems[insertPos-1].Len += count + removed.Len

	case preAdj && adj == postAdjNext:
		ne := nextCh.Elements()
		removed := ne[0]
		nextCh.Remove(0)
		elems[insertPos-1].Len += count + removed.Len
		if nextCh.Len() == 0 {
			f.reclaimEmptyChunk(nextID, nextCh)
		}

	default: // !preAdj && adj == postAdjNo
		f.insertWithOverflow(chunkID, ch, insertPos, Entry{Start: pos, Len: count})
	}
}

// insertWithOverflow inserts entry at position insertPos in ch, applying
// the "steal a cell from the chunk's own last extent" bootstrap if ch is
// full: a freelist operation must never re-enter Allocate, since it
// would observe the structure mid-mutation, so it carves its own new
// extent-chunk storage out of cells it already knows to be free.
//
// Splitting exactly at insertPos would free no capacity at all when
// insertPos is already at the end of the chunk (nothing would move past
// the split point); the split point is nudged back by one in that case
// so at least the chunk's trailing entry relocates, guaranteeing room.
func (f *Freelist) insertWithOverflow(chunkID uint32, ch *chunk.Chunk[Entry], insertPos int, entry Entry) {
	if ch.Insert(insertPos, entry) {
		return
	}

	elems := ch.Elements()
	lastIdx := len(elems) - 1
	last := elems[lastIdx]
	last.Len--
	newCellID := last.Start + last.Len
	if last.Len == 0 {
		ch.Remove(lastIdx)
		// Removing the drained extent shrank the chunk; an insert position
		// that pointed past it must shrink with it or the split below would
		// index out of bounds.
		if insertPos > ch.Len() {
			insertPos = ch.Len()
		}
	} else {
		elems[lastIdx] = last
	}

	splitPos := insertPos
	if splitPos == ch.Len() {
		splitPos--
	}

	oldNext := ch.NextIndex()
	newChunk := slab.InitCellAt[Entry](f.s, int(newCellID))
	ch.Split(splitPos, newChunk)
	newChunk.SetNextIndex(oldNext)
	ch.SetNextIndex(newCellID)

	f.logOverflowSplit(chunkID, newCellID)

	if insertPos <= splitPos {
		if !ch.Insert(insertPos, entry) {
			panic(errors.Errorf("freelist: overflow split did not free capacity in chunk %d", chunkID))
		}
		return
	}
	if !newChunk.Insert(insertPos-splitPos, entry) {
		panic(errors.Errorf("freelist: overflow split did not free capacity in successor of chunk %d", chunkID))
	}
}

// MarkUsed removes pos from the freelist, shrinking or splitting
// whichever free extent currently contains it. It returns false (and
// does nothing) if pos is not currently free.
func (f *Freelist) MarkUsed(pos uint32) bool {
	iter := slabcursor.NewMut[Entry](f.s, f.initial)
	for {
		id, ch, ok := iter.Next()
		if !ok {
			return false
		}
		elems := ch.Elements()
		idx := sort.Search(len(elems), func(i int) bool { return elems[i].Start+elems[i].Len > pos })
		if idx < len(elems) && elems[idx].Start <= pos && pos < elems[idx].Start+elems[idx].Len {
			f.markUsedAt(id, ch, idx, pos)
			return true
		}
	}
}

func (f *Freelist) markUsedAt(chunkID uint32, ch *chunk.Chunk[Entry], idx int, pos uint32) {
	elems := ch.Elements()
	e := elems[idx]

	switch {
	case e.Len == 1:
		ch.Remove(idx)
		if ch.Len() == 0 {
			f.reclaimEmptyChunk(chunkID, ch)
		}
		return

	case pos == e.Start:
		e.Start++
		e.Len--
		elems[idx] = e
		return

	case pos == e.Start+e.Len-1:
		e.Len--
		elems[idx] = e
		return

	default:
		tail := Entry{Start: pos + 1, Len: e.Start + e.Len - pos - 1}
		e.Len = pos - e.Start
		elems[idx] = e
		f.insertWithOverflow(chunkID, ch, idx+1, tail)
	}
}

// Extents calls visit once per free extent in the freelist, in sorted
// order, for diagnostic use. Returning false from visit stops the walk.
func (f *Freelist) Extents(visit func(Entry) bool) {
	iter := slabcursor.New[Entry](f.s, f.initial)
	for {
		_, ch, ok := iter.Next()
		if !ok {
			return
		}
		for _, e := range ch.Elements() {
			if !visit(e) {
				return
			}
		}
	}
}

// Stats fills an input map with runtime diagnostics about the freelist.
func (f *Freelist) Stats(m map[string]int64) map[string]int64 {
	var freeCells int64
	var chunks int64
	iter := slabcursor.New[Entry](f.s, f.initial)
	for {
		_, ch, ok := iter.Next()
		if !ok {
			break
		}
		chunks++
		for _, e := range ch.Elements() {
			freeCells += int64(e.Len)
		}
	}
	m["freeCells"] = freeCells
	m["extentChunks"] = chunks
	m["rootIndex"] = int64(f.initial)
	return m
}
