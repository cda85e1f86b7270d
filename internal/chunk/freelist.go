package chunk

import (
	"fmt"
	"math"
	"math/bits"
	"reflect"
	"unsafe"
)

const (
	// DefaultNextSize is the number of chunks in the first block.
	DefaultNextSize = 32 // chunks in the first block

	wordBits = 64
	fullWord = ^uint64(0)
)

// Options configures a FreeList.
type Options struct {
	NextSize  int // chunks in the first block, 0 means DefaultNextSize
	MaxSize   int // upper bound for block growth in chunks, 0 means unbounded
	MaxChunks int // upper bound for total capacity in chunks, 0 means unbounded
}

// FreeListFactory creates FreeList policies sharing one set of options.
type FreeListFactory struct {
	opts Options
}

// NewFreeList returns a factory for FreeList policies.
func NewFreeList(opts Options) (*FreeListFactory, error) {
	if opts.NextSize < 0 || opts.MaxSize < 0 || opts.MaxChunks < 0 {
		return nil, fmt.Errorf("%w: sizes must not be negative", ErrInvalidOption)
	}
	if opts.NextSize == 0 {
		opts.NextSize = DefaultNextSize
	}
	if opts.MaxSize > 0 && opts.NextSize > opts.MaxSize {
		opts.NextSize = opts.MaxSize
	}
	return &FreeListFactory{opts: opts}, nil
}

// DefaultFreeList returns a factory with default options.
func DefaultFreeList() *FreeListFactory {
	return &FreeListFactory{opts: Options{NextSize: DefaultNextSize}}
}

// Name identifies the policy together with its sizing.
func (f *FreeListFactory) Name() string {
	return fmt.Sprintf("freelist(next=%d,max=%d,limit=%d)", f.opts.NextSize, f.opts.MaxSize, f.opts.MaxChunks)
}

// Options returns the normalized options.
func (f *FreeListFactory) Options() Options {
	return f.opts
}

// New creates an empty FreeList for elem. No memory is reserved until
// the first allocation.
func (f *FreeListFactory) New(elem reflect.Type) (Policy, error) {
	if elem == nil {
		return nil, ErrNilType
	}
	if elem.Size() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrZeroSize, elem)
	}
	return &FreeList{
		elem:     elem,
		size:     elem.Size(),
		opts:     f.opts,
		nextSize: f.opts.NextSize,
	}, nil
}

// FreeList is a Policy that grows in blocks of typed memory.
type FreeList struct {
	elem     reflect.Type
	size     uintptr
	opts     Options
	nextSize int
	capacity int
	blocks   []*block
}

// block is one contiguous array of chunks. A set bit in used marks an
// allocated chunk; bits past n are permanently set.
type block struct {
	mem   unsafe.Pointer
	n     int
	used  []uint64
	inUse int
	hint  int // word to start single-chunk searches from
}

func newBlock(elem reflect.Type, n int) *block {
	b := &block{
		mem:  reflect.New(reflect.ArrayOf(n, elem)).UnsafePointer(),
		n:    n,
		used: make([]uint64, (n+wordBits-1)/wordBits),
	}
	if tail := n % wordBits; tail != 0 {
		b.used[len(b.used)-1] = fullWord << uint(tail)
	}
	return b
}

func (b *block) index(p unsafe.Pointer, size uintptr) (int, bool) {
	base := uintptr(b.mem)
	addr := uintptr(p)
	if addr < base || addr >= base+uintptr(b.n)*size {
		return -1, false
	}
	off := addr - base
	if off%size != 0 {
		return -1, false
	}
	return int(off / size), true
}

func (b *block) take() int {
	words := len(b.used)
	for i := 0; i < words; i++ {
		w := (b.hint + i) % words
		word := b.used[w]
		if word == fullWord {
			continue
		}
		bit := bits.TrailingZeros64(^word)
		b.used[w] |= 1 << uint(bit)
		b.inUse++
		b.hint = w
		return w*wordBits + bit
	}
	return -1
}

func (b *block) takeRun(n int) int {
	run, start := 0, 0
	for i := 0; i < b.n; i++ {
		w, bit := i/wordBits, uint(i%wordBits)
		if bit == 0 && b.used[w] == fullWord {
			run = 0
			i += wordBits - 1
			continue
		}
		if b.used[w]&(1<<bit) != 0 {
			run = 0
			continue
		}
		if run == 0 {
			start = i
		}
		run++
		if run == n {
			for j := start; j < start+n; j++ {
				b.used[j/wordBits] |= 1 << uint(j%wordBits)
			}
			b.inUse += n
			return start
		}
	}
	return -1
}

func (b *block) release(idx, n int) {
	if idx+n > b.n {
		n = b.n - idx
	}
	for j := idx; j < idx+n; j++ {
		mask := uint64(1) << uint(j%wordBits)
		if b.used[j/wordBits]&mask != 0 {
			b.used[j/wordBits] &^= mask
			b.inUse--
		}
	}
	b.hint = idx / wordBits
}

func (l *FreeList) at(b *block, idx int) unsafe.Pointer {
	return unsafe.Add(b.mem, uintptr(idx)*l.size)
}

func (l *FreeList) find(p unsafe.Pointer) (*block, int) {
	if p == nil {
		return nil, -1
	}
	for _, b := range l.blocks {
		if idx, ok := b.index(p, l.size); ok {
			return b, idx
		}
	}
	return nil, -1
}

// grow appends a block of at least min chunks.
func (l *FreeList) grow(min int) (b *block, err error) {
	n := l.nextSize
	if n < min {
		n = min
	}
	if l.opts.MaxChunks > 0 {
		if left := l.opts.MaxChunks - l.capacity; n > left {
			n = left
		}
		if n < min || n <= 0 {
			return nil, ErrExhausted
		}
	}
	if uint64(n) > math.MaxInt/uint64(l.size) {
		return nil, fmt.Errorf("%w: block of %d chunks overflows", ErrExhausted, n)
	}

	defer func() {
		if r := recover(); r != nil {
			b, err = nil, fmt.Errorf("%w: %v", ErrExhausted, r)
		}
	}()
	b = newBlock(l.elem, n)

	l.blocks = append(l.blocks, b)
	l.capacity += n
	if next := l.nextSize << 1; next > l.nextSize {
		l.nextSize = next
	}
	if l.opts.MaxSize > 0 && l.nextSize > l.opts.MaxSize {
		l.nextSize = l.opts.MaxSize
	}
	return b, nil
}

// AllocateChunk returns one free chunk, growing by a new block if needed.
func (l *FreeList) AllocateChunk() (unsafe.Pointer, error) {
	// Newest blocks are the least likely to be full.
	for i := len(l.blocks) - 1; i >= 0; i-- {
		b := l.blocks[i]
		if b.inUse == b.n {
			continue
		}
		if idx := b.take(); idx >= 0 {
			return l.at(b, idx), nil
		}
	}
	b, err := l.grow(1)
	if err != nil {
		return nil, err
	}
	return l.at(b, b.take()), nil
}

// AllocateOrderedChunks returns n contiguous chunks from a single block.
func (l *FreeList) AllocateOrderedChunks(n int) (unsafe.Pointer, error) {
	if n < 1 {
		return nil, ErrInvalidCount
	}
	for i := len(l.blocks) - 1; i >= 0; i-- {
		b := l.blocks[i]
		if b.n-b.inUse < n {
			continue
		}
		if idx := b.takeRun(n); idx >= 0 {
			return l.at(b, idx), nil
		}
	}
	b, err := l.grow(n)
	if err != nil {
		return nil, err
	}
	return l.at(b, b.takeRun(n)), nil
}

// FreeChunk marks one chunk free. Foreign pointers are ignored.
func (l *FreeList) FreeChunk(p unsafe.Pointer) {
	l.FreeOrderedChunks(p, 1)
}

// FreeOrderedChunks marks n chunks starting at p free. Foreign pointers
// are ignored; a count running past the owning block is truncated.
func (l *FreeList) FreeOrderedChunks(p unsafe.Pointer, n int) {
	if n < 1 {
		return
	}
	b, idx := l.find(p)
	if b == nil {
		return
	}
	b.release(idx, n)
}

// Owns reports whether p is a chunk boundary inside one of the blocks.
func (l *FreeList) Owns(p unsafe.Pointer) bool {
	b, _ := l.find(p)
	return b != nil
}

// Purge drops every block without allocated chunks and restarts block
// growth from the initial size.
func (l *FreeList) Purge() int {
	old := l.blocks
	kept := old[:0]
	released := 0
	for _, b := range old {
		if b.inUse == 0 {
			l.capacity -= b.n
			released++
			continue
		}
		kept = append(kept, b)
	}
	for i := len(kept); i < len(old); i++ {
		old[i] = nil
	}
	l.blocks = kept
	if released > 0 {
		l.nextSize = l.opts.NextSize
	}
	return released
}

// ChunkSize returns the element size.
func (l *FreeList) ChunkSize() uintptr {
	return l.size
}

// Stats returns current usage.
func (l *FreeList) Stats() Stats {
	s := Stats{
		ChunkSize: l.size,
		Blocks:    len(l.blocks),
		Capacity:  l.capacity,
	}
	for _, b := range l.blocks {
		s.InUse += b.inUse
	}
	return s
}
