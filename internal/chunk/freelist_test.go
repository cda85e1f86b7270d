package chunk

import (
	"reflect"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	X, Y int64
	Tag  *string
}

var pointType = reflect.TypeOf(point{})

func newPointList(t *testing.T, opts Options) *FreeList {
	t.Helper()
	f, err := NewFreeList(opts)
	require.NoError(t, err)
	p, err := f.New(pointType)
	require.NoError(t, err)
	return p.(*FreeList)
}

func TestNewFreeList(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		f, err := NewFreeList(Options{})
		require.NoError(t, err)
		assert.Equal(t, DefaultNextSize, f.Options().NextSize)
		assert.Equal(t, "freelist(next=32,max=0,limit=0)", f.Name())
	})

	t.Run("next size clamped to max size", func(t *testing.T) {
		f, err := NewFreeList(Options{NextSize: 64, MaxSize: 16})
		require.NoError(t, err)
		assert.Equal(t, 16, f.Options().NextSize)
	})

	t.Run("negative options rejected", func(t *testing.T) {
		for _, opts := range []Options{{NextSize: -1}, {MaxSize: -1}, {MaxChunks: -1}} {
			_, err := NewFreeList(opts)
			assert.ErrorIs(t, err, ErrInvalidOption)
		}
	})

	t.Run("default factory matches zero options", func(t *testing.T) {
		f, err := NewFreeList(Options{})
		require.NoError(t, err)
		assert.Equal(t, f.Name(), DefaultFreeList().Name())
	})
}

func TestFreeListFactory_New(t *testing.T) {
	f := DefaultFreeList()

	t.Run("nil type", func(t *testing.T) {
		_, err := f.New(nil)
		assert.ErrorIs(t, err, ErrNilType)
	})

	t.Run("zero size type", func(t *testing.T) {
		_, err := f.New(reflect.TypeOf(struct{}{}))
		assert.ErrorIs(t, err, ErrZeroSize)
	})

	t.Run("chunk size matches element", func(t *testing.T) {
		p, err := f.New(pointType)
		require.NoError(t, err)
		assert.Equal(t, unsafe.Sizeof(point{}), p.ChunkSize())
		assert.Equal(t, 0, p.Stats().Blocks, "no memory before first allocation")
	})
}

func TestFreeList_AllocateChunk(t *testing.T) {
	l := newPointList(t, Options{NextSize: 4})

	seen := make(map[uintptr]bool)
	for i := 0; i < 10; i++ {
		p, err := l.AllocateChunk()
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.False(t, seen[uintptr(p)], "chunk handed out twice")
		seen[uintptr(p)] = true
		assert.True(t, l.Owns(p))
	}

	stats := l.Stats()
	assert.Equal(t, 10, stats.InUse)
	// Blocks of 4, 8 chunks cover 10 allocations.
	assert.Equal(t, 2, stats.Blocks)
	assert.Equal(t, 12, stats.Capacity)
	assert.Equal(t, 2, stats.Free())
	assert.Equal(t, uintptr(12)*unsafe.Sizeof(point{}), stats.ReservedBytes())
}

func TestFreeList_ChunkMemoryIsUsable(t *testing.T) {
	l := newPointList(t, Options{NextSize: 2})

	tag := "live"
	var ptrs []*point
	for i := 0; i < 5; i++ {
		p, err := l.AllocateChunk()
		require.NoError(t, err)
		pt := (*point)(p)
		pt.X, pt.Y, pt.Tag = int64(i), int64(-i), &tag
		ptrs = append(ptrs, pt)
	}
	for i, pt := range ptrs {
		assert.Equal(t, int64(i), pt.X)
		assert.Equal(t, int64(-i), pt.Y)
		assert.Same(t, &tag, pt.Tag)
	}
}

func TestFreeList_FreeChunkReuses(t *testing.T) {
	l := newPointList(t, Options{NextSize: 8})

	p, err := l.AllocateChunk()
	require.NoError(t, err)
	l.FreeChunk(p)
	assert.Equal(t, 0, l.Stats().InUse)

	q, err := l.AllocateChunk()
	require.NoError(t, err)
	assert.Equal(t, p, q, "freed chunk should be reused")
	assert.Equal(t, 1, l.Stats().Blocks)
}

func TestFreeList_DoubleFreeIgnored(t *testing.T) {
	l := newPointList(t, Options{})

	p, err := l.AllocateChunk()
	require.NoError(t, err)
	_, err = l.AllocateChunk()
	require.NoError(t, err)

	l.FreeChunk(p)
	l.FreeChunk(p)
	assert.Equal(t, 1, l.Stats().InUse)
}

func TestFreeList_Owns(t *testing.T) {
	l := newPointList(t, Options{})
	other := newPointList(t, Options{})

	p, err := l.AllocateChunk()
	require.NoError(t, err)

	t.Run("own chunk", func(t *testing.T) {
		assert.True(t, l.Owns(p))
	})

	t.Run("chunk of another list", func(t *testing.T) {
		assert.False(t, other.Owns(p))
	})

	t.Run("interior pointer", func(t *testing.T) {
		assert.False(t, l.Owns(unsafe.Add(p, 1)))
	})

	t.Run("heap pointer", func(t *testing.T) {
		assert.False(t, l.Owns(unsafe.Pointer(&point{})))
	})

	t.Run("nil", func(t *testing.T) {
		assert.False(t, l.Owns(nil))
	})

	t.Run("foreign free ignored", func(t *testing.T) {
		other.FreeChunk(p)
		assert.Equal(t, 1, l.Stats().InUse)
	})
}

func TestFreeList_AllocateOrderedChunks(t *testing.T) {
	t.Run("contiguous block", func(t *testing.T) {
		l := newPointList(t, Options{NextSize: 4})

		p, err := l.AllocateOrderedChunks(100)
		require.NoError(t, err)
		arr := unsafe.Slice((*point)(p), 100)
		for i := range arr {
			arr[i].X = int64(i)
			assert.True(t, l.Owns(unsafe.Pointer(&arr[i])))
		}
		assert.Equal(t, 100, l.Stats().InUse)
		assert.Equal(t, 1, l.Stats().Blocks)
	})

	t.Run("fills gaps before growing", func(t *testing.T) {
		l := newPointList(t, Options{NextSize: 64})

		var ptrs []unsafe.Pointer
		for i := 0; i < 64; i++ {
			p, err := l.AllocateChunk()
			require.NoError(t, err)
			ptrs = append(ptrs, p)
		}
		for _, p := range ptrs[10:20] {
			l.FreeChunk(p)
		}

		p, err := l.AllocateOrderedChunks(10)
		require.NoError(t, err)
		assert.Equal(t, ptrs[10], p)
		assert.Equal(t, 1, l.Stats().Blocks)
	})

	t.Run("run crossing word boundary", func(t *testing.T) {
		l := newPointList(t, Options{NextSize: 128})

		_, err := l.AllocateOrderedChunks(60)
		require.NoError(t, err)
		p, err := l.AllocateOrderedChunks(10)
		require.NoError(t, err)
		first, _ := l.AllocateOrderedChunks(1)
		l.FreeChunk(first)

		b, idx := l.find(p)
		require.NotNil(t, b)
		assert.Equal(t, 60, idx)
	})

	t.Run("invalid count", func(t *testing.T) {
		l := newPointList(t, Options{})
		_, err := l.AllocateOrderedChunks(0)
		assert.ErrorIs(t, err, ErrInvalidCount)
	})

	t.Run("free ordered chunks", func(t *testing.T) {
		l := newPointList(t, Options{})

		p, err := l.AllocateOrderedChunks(20)
		require.NoError(t, err)
		l.FreeOrderedChunks(p, 20)
		assert.Equal(t, 0, l.Stats().InUse)

		q, err := l.AllocateOrderedChunks(20)
		require.NoError(t, err)
		assert.Equal(t, p, q)
	})
}

func TestFreeList_Growth(t *testing.T) {
	t.Run("doubles next size", func(t *testing.T) {
		l := newPointList(t, Options{NextSize: 2})
		for i := 0; i < 2+4+8; i++ {
			_, err := l.AllocateChunk()
			require.NoError(t, err)
		}
		assert.Equal(t, 3, l.Stats().Blocks)
		assert.Equal(t, 16, l.nextSize)
	})

	t.Run("capped by max size", func(t *testing.T) {
		l := newPointList(t, Options{NextSize: 2, MaxSize: 4})
		for i := 0; i < 14; i++ {
			_, err := l.AllocateChunk()
			require.NoError(t, err)
		}
		// 2 + 4 + 4 + 4
		assert.Equal(t, 4, l.Stats().Blocks)
		assert.Equal(t, 4, l.nextSize)
	})
}

func TestFreeList_Exhaustion(t *testing.T) {
	l := newPointList(t, Options{NextSize: 4, MaxChunks: 6})

	for i := 0; i < 6; i++ {
		_, err := l.AllocateChunk()
		require.NoError(t, err, "allocation %d", i)
	}
	_, err := l.AllocateChunk()
	assert.ErrorIs(t, err, ErrExhausted)
	_, err = l.AllocateOrderedChunks(2)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 6, l.Stats().Capacity)
}

func TestFreeList_Purge(t *testing.T) {
	l := newPointList(t, Options{NextSize: 4})

	var ptrs []unsafe.Pointer
	for i := 0; i < 12; i++ {
		p, err := l.AllocateChunk()
		require.NoError(t, err)
		ptrs = append(ptrs, p)
	}
	require.Equal(t, 2, l.Stats().Blocks)

	// Free the whole second block, keep one chunk of the first.
	for _, p := range ptrs[1:] {
		l.FreeChunk(p)
	}

	released := l.Purge()
	assert.Equal(t, 1, released)
	assert.Equal(t, 1, l.Stats().Blocks)
	assert.Equal(t, 4, l.Stats().Capacity)
	assert.Equal(t, 4, l.nextSize)
	assert.True(t, l.Owns(ptrs[0]), "live chunk survives purge")
	assert.False(t, l.Owns(ptrs[len(ptrs)-1]))

	l.FreeChunk(ptrs[0])
	assert.Equal(t, 1, l.Purge())
	assert.Equal(t, 0, l.Stats().Capacity)

	assert.Equal(t, 0, l.Purge(), "purge of empty list is a no-op")
}

// Benchmarks

func BenchmarkFreeListAllocateFree(b *testing.B) {
	l, _ := DefaultFreeList().New(pointType)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		p, _ := l.AllocateChunk()
		l.FreeChunk(p)
	}
}

func BenchmarkFreeListAllocateBulk(b *testing.B) {
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		l, _ := DefaultFreeList().New(pointType)
		for j := 0; j < 10000; j++ {
			_, _ = l.AllocateChunk()
		}
	}
}
