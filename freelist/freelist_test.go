package freelist

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djugei/block-layer/slab"
)

func freeCells(t *testing.T, f *Freelist) int {
	t.Helper()
	total := 0
	f.Extents(func(e Entry) bool {
		total += int(e.Len)
		return true
	})
	return total
}

func checkDisjoint(t *testing.T, f *Freelist) {
	t.Helper()
	last := uint32(0)
	f.Extents(func(e Entry) bool {
		require.GreaterOrEqual(t, e.Start, last)
		last = e.Start + e.Len
		return true
	})
}

func TestNewInitialState(t *testing.T) {
	s, err := slab.New(30000)
	require.NoError(t, err)
	f, err := New(s, 5)
	require.NoError(t, err)

	var extents []Entry
	f.Extents(func(e Entry) bool {
		extents = append(extents, e)
		return true
	})
	assert.Equal(t, []Entry{{Start: 0, Len: 5}, {Start: 6, Len: 29994}}, extents)
	assert.Equal(t, 29999, freeCells(t, f))
}

func TestNewRejectsOutOfRangeInitial(t *testing.T) {
	s, err := slab.New(4)
	require.NoError(t, err)
	_, err = New(s, 4)
	assert.Error(t, err)
}

func TestAllocateExactFit(t *testing.T) {
	s, err := slab.New(100)
	require.NoError(t, err)
	f, err := New(s, 0)
	require.NoError(t, err)

	before := freeCells(t, f)
	start, n, err := f.Allocate(10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, start)
	assert.EqualValues(t, 10, n)
	assert.Equal(t, before-10, freeCells(t, f))
}

func TestAllocateExhausted(t *testing.T) {
	s, err := slab.New(2)
	require.NoError(t, err)
	f, err := New(s, 0)
	require.NoError(t, err)

	_, _, err = f.Allocate(1)
	require.NoError(t, err)

	_, n, err := f.Allocate(1)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.EqualValues(t, 0, n)
}

func TestAllocatePartial(t *testing.T) {
	s, err := slab.New(10)
	require.NoError(t, err)
	f, err := New(s, 0)
	require.NoError(t, err)

	start, n, err := f.Allocate(100)
	assert.ErrorIs(t, err, ErrPartialAllocation)
	assert.EqualValues(t, 1, start)
	assert.EqualValues(t, 9, n)
}

func TestFreeReunitesAdjacentExtents(t *testing.T) {
	s, err := slab.New(20)
	require.NoError(t, err)
	f, err := New(s, 0)
	require.NoError(t, err)

	start, n, err := f.Allocate(5)
	require.NoError(t, err)
	require.EqualValues(t, 5, n)

	before := freeCells(t, f)
	f.Free(start, n)
	assert.Equal(t, before+5, freeCells(t, f))
	checkDisjoint(t, f)

	var extents []Entry
	f.Extents(func(e Entry) bool {
		extents = append(extents, e)
		return true
	})
	assert.Len(t, extents, 1, "freeing the whole allocated run should re-merge into one contiguous extent")
}

func TestDoubleFreePanics(t *testing.T) {
	s, err := slab.New(20)
	require.NoError(t, err)
	f, err := New(s, 0)
	require.NoError(t, err)

	start, n, err := f.Allocate(5)
	require.NoError(t, err)
	f.Free(start, n)

	assert.Panics(t, func() { f.Free(start, n) })
}

func TestMarkUsedThenFreeRoundTrips(t *testing.T) {
	s, err := slab.New(20)
	require.NoError(t, err)
	f, err := New(s, 0)
	require.NoError(t, err)

	before := freeCells(t, f)
	assert.True(t, f.MarkUsed(3))
	assert.Equal(t, before-1, freeCells(t, f))

	assert.False(t, f.MarkUsed(3), "cell 3 is no longer free")

	f.Free(3, 1)
	assert.Equal(t, before, freeCells(t, f))
	checkDisjoint(t, f)
}

func TestAllocFreeStress(t *testing.T) {
	const nCells = 30000
	s, err := slab.New(nCells)
	require.NoError(t, err)
	f, err := New(s, 5)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	type alloc struct{ start, length uint32 }
	var live []alloc

	// drain the freelist with randomly sized requests, reissuing partials,
	// until nothing at all is left
	drainAlloc := func() {
		for {
			size := uint32(1 + rng.Intn(49))
			for size > 0 {
				pre := freeCells(t, f)
				start, n, err := f.Allocate(size)
				checkDisjoint(t, f)
				if err == ErrExhausted {
					return
				}
				live = append(live, alloc{start, n})
				post := freeCells(t, f)
				assert.Equal(t, pre-int(n), post)
				size -= n
			}
		}
	}

	// free in a random order to hit the adjacency edge cases
	doFree := func(count int) {
		for i := 0; i < count && len(live) > 0; i++ {
			j := rng.Intn(len(live))
			a := live[j]
			live = append(live[:j], live[j+1:]...)
			pre := freeCells(t, f)
			f.Free(a.start, a.length)
			checkDisjoint(t, f)
			post := freeCells(t, f)
			assert.GreaterOrEqual(t, post, pre+int(a.length)-1,
				"freeing may consume at most one cell for its own bookkeeping")
		}
	}

	checkFullyFreed := func() {
		t.Helper()
		assert.Equal(t, nCells-1, freeCells(t, f))
		stats := f.Stats(map[string]int64{})
		require.EqualValues(t, 1, stats["extentChunks"], "all overflow chunks must have been reclaimed")
		root := f.rootChunk()
		assert.False(t, root.HasNextIndex())
		require.Equal(t, 2, root.Len())
		r := uint32(stats["rootIndex"])
		assert.Equal(t, Entry{Start: 0, Len: r}, root.At(0))
		assert.Equal(t, Entry{Start: r + 1, Len: nCells - r - 1}, root.At(1))
	}

	drainAlloc()
	doFree(len(live))
	checkFullyFreed()

	drainAlloc()
	doFree(len(live) / 2)
	drainAlloc()
	doFree(len(live))
	checkFullyFreed()
}

func TestDiagnosticsEmitStructuredEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(&buf), stumpy.WithTimeField(``)),
		stumpy.L.WithLevel(logiface.LevelDebug),
	)

	s, err := slab.New(2000)
	require.NoError(t, err)
	f, err := New(s, 0, WithLogger(logger))
	require.NoError(t, err)

	for {
		_, _, err := f.Allocate(2000)
		if err == ErrExhausted {
			break
		}
	}
	assert.Contains(t, buf.String(), `"event":"exhausted"`)

	// fill the root chunk with non-mergeable singleton extents and tip it
	// over so the overflow-split event fires too
	capacity := f.rootChunk().Capacity()
	for i := 0; i <= capacity; i++ {
		f.Free(uint32(2*i+1), 1)
	}
	assert.Contains(t, buf.String(), `"event":"overflow_split"`)
}

func TestOverflowSplitStealsTailCell(t *testing.T) {
	const nCells = 2000
	s, err := slab.New(nCells)
	require.NoError(t, err)
	f, err := New(s, 0)
	require.NoError(t, err)

	// use up the whole slab so the root extent-chunk is empty
	for {
		_, _, err := f.Allocate(nCells)
		if err == ErrExhausted {
			break
		}
	}
	require.Equal(t, 0, freeCells(t, f))

	// free alternating cells: none of them merge, so every free inserts a
	// fresh entry into the root chunk until it is completely full
	capacity := f.rootChunk().Capacity()
	for i := 0; i < capacity; i++ {
		f.Free(uint32(2*i+1), 1)
	}
	require.Equal(t, capacity, f.rootChunk().Len())
	require.False(t, f.rootChunk().HasNextIndex())

	// one more non-adjacent free overflows the root; the new extent-chunk's
	// cell must come from stealing the tail of the last extent, not from
	// re-entering Allocate
	lastExtent := f.rootChunk().At(capacity - 1)
	stolen := lastExtent.Start + lastExtent.Len - 1
	overflowPos := uint32(2*capacity + 1)
	f.Free(overflowPos, 1)

	root := f.rootChunk()
	require.True(t, root.HasNextIndex())
	assert.Equal(t, stolen, root.NextIndex(), "new extent-chunk must live in the stolen tail cell")

	stats := f.Stats(map[string]int64{})
	assert.EqualValues(t, 2, stats["extentChunks"])
	checkDisjoint(t, f)

	// the stolen cell is in use now, so of the capacity+1 freed cells only
	// capacity remain free, and none of the extents may cover the stolen cell
	assert.Equal(t, capacity, freeCells(t, f))
	f.Extents(func(e Entry) bool {
		assert.False(t, e.Start <= stolen && stolen < e.Start+e.Len,
			"stolen cell %d must no longer be tracked as free", stolen)
		return true
	})
}
