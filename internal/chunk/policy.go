package chunk

import (
	"errors"
	"reflect"
	"unsafe"
)

var (
	// ErrExhausted is returned when a policy cannot provide more chunks.
	ErrExhausted = errors.New("chunk: pool exhausted")

	// ErrZeroSize is returned for element types that occupy no memory.
	ErrZeroSize = errors.New("chunk: element type has zero size")

	// ErrNilType is returned when a policy is requested without an element type.
	ErrNilType = errors.New("chunk: nil element type")

	// ErrInvalidCount is returned for ordered requests of less than one chunk.
	ErrInvalidCount = errors.New("chunk: count must be greater than zero")

	// ErrInvalidOption is returned for negative sizing options.
	ErrInvalidOption = errors.New("chunk: invalid option")
)

// Policy is a raw fixed-size chunk allocator for a single element type.
type Policy interface {
	// AllocateChunk returns one free chunk.
	AllocateChunk() (unsafe.Pointer, error)

	// AllocateOrderedChunks returns the first of n contiguous free chunks.
	AllocateOrderedChunks(n int) (unsafe.Pointer, error)

	// FreeChunk marks a chunk obtained from AllocateChunk as free.
	FreeChunk(p unsafe.Pointer)

	// FreeOrderedChunks marks n contiguous chunks starting at p as free.
	// n must match the count used at allocation.
	FreeOrderedChunks(p unsafe.Pointer, n int)

	// Owns reports whether p is the address of one of this policy's chunks.
	Owns(p unsafe.Pointer) bool

	// Purge releases every block that holds no allocated chunk and
	// returns the number of blocks released.
	Purge() int

	// ChunkSize returns the size of one chunk in bytes.
	ChunkSize() uintptr

	// Stats returns current usage.
	Stats() Stats
}

// Factory creates policies for an element type.
//
// Name identifies the policy. Two factories with the same name are
// treated as the same policy when pools are keyed per thread.
type Factory interface {
	Name() string
	New(elem reflect.Type) (Policy, error)
}

// Stats contains policy usage statistics.
type Stats struct {
	ChunkSize uintptr
	Blocks    int
	Capacity  int // chunks across all blocks
	InUse     int // allocated chunks
}

// Free returns the number of chunks available without growing.
func (s Stats) Free() int {
	return s.Capacity - s.InUse
}

// ReservedBytes returns the memory held by all blocks.
func (s Stats) ReservedBytes() uintptr {
	return uintptr(s.Capacity) * s.ChunkSize
}
