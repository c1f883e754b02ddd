package anchor

import "github.com/djugei/block-layer/chunk"

// Cursor is a read-only traversal over an Anchor's chain, usable
// concurrently with other readers (but never alongside a MutCursor on
// the same Anchor -- sequences are single-owner).
type Cursor[T any] struct {
	chunk *chunk.Chunk[T]
}

// Cursor returns a fresh read-only cursor positioned before the first
// chunk.
func (a *Anchor[T]) Cursor() *Cursor[T] {
	return &Cursor[T]{chunk: a.start}
}

// Next returns the next chunk in the chain, or (nil, false) once the
// chain is exhausted.
func (c *Cursor[T]) Next() (*chunk.Chunk[T], bool) {
	if c.chunk == nil {
		return nil, false
	}
	cur := c.chunk
	c.chunk = cur.NextOwningPtr()
	return cur, true
}

// MutCursor is a mutable traversal over an Anchor's chain. Unlike a
// regular iterator, Next returns the *current* (already yielded) chunk:
// the caller is expected to finish mutating the previously returned
// chunk (including any Split or Push that introduces a new successor)
// before calling Next again, at which point Next re-reads the chunk's
// next-hint and so correctly picks up whatever the mutation produced.
//
// Go cannot enforce "release the previous handle before asking for the
// next one" at compile time; callers are responsible for not retaining
// a chunk pointer returned by one Next call across a later one, since
// Split may relocate data the old pointer no longer describes
// accurately once the chain has moved on.
type MutCursor[T any] struct {
	anchor *Anchor[T]
	cur    *chunk.Chunk[T]
	first  bool
}

// Mutate returns a fresh mutable cursor over a's chain.
func (a *Anchor[T]) Mutate() *MutCursor[T] {
	return &MutCursor[T]{anchor: a, cur: a.start, first: true}
}

// Next advances past whatever was previously returned (a no-op on the
// very first call, since the cursor starts already positioned at the
// first chunk) and returns the new current chunk, or nil if the chain is
// exhausted.
func (m *MutCursor[T]) Next() *chunk.Chunk[T] {
	if m.cur == nil {
		return nil
	}
	if m.first {
		m.first = false
	} else {
		m.cur = m.cur.NextOwningPtr()
	}
	return m.cur
}

// Get returns the current chunk without advancing the cursor.
func (m *MutCursor[T]) Get() *chunk.Chunk[T] { return m.cur }

// materialize allocates the anchor's first chunk on demand, for anchors
// that were created without one. The cursor ends up positioned exactly
// as if the anchor had been built via NewEmpty: the new chunk is the
// current one, and a first Next call will still yield it. Panics if the
// anchor already owns a chain and the cursor has moved past its end.
func (m *MutCursor[T]) materialize() *chunk.Chunk[T] {
	if m.cur != nil {
		return m.cur
	}
	if m.anchor.start != nil {
		panic("anchor: cursor has moved past the end of the chain")
	}
	start := chunk.NewAligned[T]()
	m.anchor.start = start
	m.anchor.refs = append(m.anchor.refs, start)
	m.cur = start
	return start
}

// HasNext reports whether the current chunk has a successor.
func (m *MutCursor[T]) HasNext() bool {
	return m.cur != nil && m.cur.HasNextPtr()
}

// Split splits the current chunk at pos, allocating a new page-aligned
// successor chunk and relinking it immediately after the current one
// (ahead of whatever the current chunk's old successor was). On an
// anchor that owns no chunk yet, the first chunk is allocated first and
// split (necessarily at 0) from there.
func (m *MutCursor[T]) Split(pos int) {
	c := m.materialize()
	next := chunk.NewAligned[T]()
	c.Split(pos, next)
	old := c.NextOwningPtr()
	next.SetNextOwningPtr(old)
	c.SetNextOwningPtr(next)
	m.anchor.refs = append(m.anchor.refs, next)
}

// Push appends value to the current chunk, allocating the anchor's
// first chunk if it owns none yet. If the chunk is full, it splits off
// the chunk's last element into a freshly allocated successor and
// appends value there instead, so an overflowing push moves one element
// rather than half the chunk (none, for a single-slot chunk). Panics if
// value alone cannot fit in an empty chunk.
func (m *MutCursor[T]) Push(value T) {
	c := m.materialize()
	if c.Push(value) {
		return
	}
	splitAt := c.Len() - 1
	if splitAt == 0 {
		splitAt = c.Len()
	}
	m.Split(splitAt)
	next := c.NextOwningPtr()
	if !next.Push(value) {
		panic("anchor: element too large to fit in an empty chunk")
	}
}
