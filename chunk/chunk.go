// Package chunk implements the page-sized bounded slot buffer shared by
// every link discipline in this module: owning-pointer sequences
// (package anchor), slab-index sequences (packages slabcursor and
// freelist), and anything built on top of them.
//
// A Chunk[T] is always exactly 4096 bytes, laid out as a raw byte buffer,
// a 16-bit length, and an 8-byte "next hint" word. The next-hint word is
// deliberately opaque here: it is reinterpreted by the owning package
// according to whichever link discipline applies (see link.go), so the
// primitive is written once rather than monomorphized over a link-tag
// type parameter.
package chunk

import (
	"unsafe"

	"github.com/pkg/errors"
)

const (
	// PageSize is the fixed size, in bytes, of every Chunk and of every
	// slab cell a Chunk may be initialized into.
	PageSize = 4096

	wordSize = 8 // next-hint field width; this module only targets 64-bit link words.

	// bufSize is the usable byte buffer inside a chunk: the page minus the
	// 16-bit length field and the word-sized next-hint.
	bufSize = PageSize - 2 - wordSize
)

// Chunk is a fixed 4096-byte cell holding up to Capacity[T]() initialized
// values of T in slots [0, Len()), plus an opaque next-hint word.
//
// The zero value is a valid, empty Chunk (this falls out of Go's
// zero-is-useful memory semantics: the byte buffer is zeroed, len is 0,
// and next is 0; "0" is the correct "empty" encoding for the
// owning-pointer and raw-pointer disciplines; slab-index sequences must
// explicitly mark newly initialized chunks empty via SetNextIndex, since
// their empty sentinel is not zero; see link.go).
type Chunk[T any] struct {
	buf  [bufSize]byte
	len  uint16
	next uint64
}

// New returns a pointer to a freshly zeroed, empty Chunk[T], validating
// that T fits this chunk's fixed layout. Panics (via a wrapped error) if
// sizeof(T) exceeds the usable buffer or T is over-aligned.
//
// Callers that need the chunk's storage to live at a 4096-aligned
// address (a slab cell, or a standalone heap chunk handed to an owning
// sequence) should use the slab package or NewAligned instead.
func New[T any]() *Chunk[T] {
	if err := validate[T](); err != nil {
		panic(err)
	}
	return &Chunk[T]{}
}

// Initialize re-zeroes storage that the caller already owns (for example
// a slab cell being reused for a new element type) in place, returning it
// as a Chunk[T]. Unlike New, it does not allocate.
func Initialize[T any](storage *Chunk[T]) *Chunk[T] {
	if err := validate[T](); err != nil {
		panic(err)
	}
	*storage = Chunk[T]{}
	return storage
}

func validate[T any]() error {
	var zero T
	size := unsafe.Sizeof(zero)
	align := unsafe.Alignof(zero)
	if size > bufSize {
		return errors.Errorf("chunk: element type too large: sizeof(T)=%d exceeds buffer capacity %d", size, bufSize)
	}
	if align > PageSize {
		return errors.Errorf("chunk: element type over-aligned: alignof(T)=%d exceeds page size %d", align, PageSize)
	}
	return nil
}

// Capacity returns the maximum number of T elements this chunk can hold,
// floor(bufSize / sizeof(T)).
func (c *Chunk[T]) Capacity() int {
	var zero T
	size := unsafe.Sizeof(zero)
	if size == 0 {
		return bufSize
	}
	return bufSize / int(size)
}

// Len returns the number of initialized elements.
func (c *Chunk[T]) Len() int { return int(c.len) }

func (c *Chunk[T]) slice() []T {
	if len(c.buf) == 0 {
		return nil
	}
	base := (*T)(unsafe.Pointer(&c.buf[0]))
	return unsafe.Slice(base, c.Capacity())
}

// At returns the element at slot i, which must be < Len().
func (c *Chunk[T]) At(i int) T { return c.Elements()[i] }

// Elements returns the live slots [0, Len()) as a slice backed directly by
// the chunk's buffer; mutating it mutates the chunk.
func (c *Chunk[T]) Elements() []T { return c.slice()[:c.len] }

// Push appends value if there is room. On overflow it returns ok=false,
// leaving the chunk untouched.
func (c *Chunk[T]) Push(value T) (ok bool) {
	if int(c.len) >= c.Capacity() {
		return false
	}
	c.slice()[c.len] = value
	c.len++
	return true
}

// Pop removes and returns the last element. ok is false if the chunk is
// empty.
func (c *Chunk[T]) Pop() (value T, ok bool) {
	if c.len == 0 {
		return value, false
	}
	c.len--
	s := c.slice()
	value = s[c.len]
	var zero T
	s[c.len] = zero
	return value, true
}

// Insert shifts slots [index, Len()) up by one and writes value at index.
// It panics if index > Len() (out of bounds), and returns false if the
// chunk is full (no write occurs).
func (c *Chunk[T]) Insert(index int, value T) (ok bool) {
	if index > c.Len() {
		panic(errors.Errorf("chunk: insert index %d out of bounds (len=%d)", index, c.Len()))
	}
	if int(c.len) >= c.Capacity() {
		return false
	}
	s := c.slice()
	copy(s[index+1:c.len+1], s[index:c.len])
	s[index] = value
	c.len++
	return true
}

// Remove reads out and removes the element at index, shifting
// (index, Len()) down by one. ok is false if index >= Len(); the chunk is
// left unchanged in that case.
func (c *Chunk[T]) Remove(index int) (value T, ok bool) {
	if index >= c.Len() {
		return value, false
	}
	s := c.slice()
	value = s[index]
	copy(s[index:c.len-1], s[index+1:c.len])
	c.len--
	var zero T
	s[c.len] = zero
	return value, true
}

// Split re-initializes other (discarding anything previously stored
// there, and resetting its next-hint to the generic empty/zero value,
// not the slab-index sentinel, see link.go) and moves slots
// [index, Len()) of c into other[0, Len()-index). c.Len() becomes index.
//
// c's next-hint is left completely untouched, and other's is reset to
// zero rather than derived from c's: the correct relink depends on the
// link discipline in play (owning sequences adopt other as c's new
// successor; slab sequences must allocate an index for other first, and
// must explicitly mark a zero-initialized other empty via SetNextIndex if
// its discipline's empty sentinel isn't zero) and is therefore the
// caller's job, not this primitive's.
//
// Panics if index > Len().
func (c *Chunk[T]) Split(index int, other *Chunk[T]) {
	if index > c.Len() {
		panic(errors.Errorf("chunk: split index %d out of bounds (len=%d)", index, c.Len()))
	}
	*other = Chunk[T]{}
	moved := c.Len() - index
	copy(other.slice()[:moved], c.slice()[index:c.len])
	other.len = uint16(moved)
	var zero T
	for i := index; i < c.Len(); i++ {
		c.slice()[i] = zero
	}
	c.len = uint16(index)
}
