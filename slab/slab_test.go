package slab

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djugei/block-layer/chunk"
)

func TestNewRejectsNonPositiveCells(t *testing.T) {
	_, err := New(0)
	assert.Error(t, err)
	_, err = New(-1)
	assert.Error(t, err)
}

func TestCellsArePageAligned(t *testing.T) {
	s, err := New(8)
	require.NoError(t, err)
	for i := 0; i < s.Len(); i++ {
		c := CellAt[uint64](s, i)
		addr := uintptr(unsafe.Pointer(c))
		assert.Zero(t, addr%chunk.PageSize, "cell %d must be page aligned", i)
	}
}

func TestCellAtPanicsOutOfBounds(t *testing.T) {
	s, err := New(2)
	require.NoError(t, err)
	assert.Panics(t, func() { CellAt[uint64](s, 2) })
	assert.Panics(t, func() { CellAt[uint64](s, -1) })
}

func TestCellsAreIndependent(t *testing.T) {
	s, err := New(2)
	require.NoError(t, err)
	a := CellAt[int](s, 0)
	b := CellAt[int](s, 1)
	require.True(t, a.Push(1))
	require.True(t, b.Push(2))
	assert.Equal(t, []int{1}, a.Elements())
	assert.Equal(t, []int{2}, b.Elements())
}

func TestInitCellAtResetsStaleData(t *testing.T) {
	s, err := New(1)
	require.NoError(t, err)
	a := CellAt[int](s, 0)
	require.True(t, a.Push(1))
	require.True(t, a.Push(2))

	reset := InitCellAt[int](s, 0)
	assert.Equal(t, 0, reset.Len())
}

func TestStatsTracksTouchedCells(t *testing.T) {
	s, err := New(4)
	require.NoError(t, err)
	m := s.Stats(map[string]int64{})
	assert.EqualValues(t, 0, m["cellsTouched"])

	CellAt[int](s, 0)
	CellAt[int](s, 0)
	CellAt[int](s, 1)

	m = s.Stats(map[string]int64{})
	assert.EqualValues(t, 2, m["cellsTouched"])
	assert.EqualValues(t, 4, m["cells"])
}
