package freelist

// Entry is one run-length-encoded free extent: count consecutive free
// cells starting at Start.
type Entry struct {
	Start uint32
	Len   uint32
}

// allocate shrinks e from its front by count cells, returning the
// allocated range's starting cell. Callers must remove e from its
// owning chunk if the resulting Len is zero.
func (e *Entry) allocate(count uint32) (start uint32) {
	start = e.Start
	e.Start += count
	e.Len -= count
	return start
}
