// Package container provides generic containers whose storage comes from
// a tlspool allocator.
//
// Containers are bound to the allocator's thread and, like it, are not
// safe for concurrent use. Allocation failures surface as the
// allocator's panic. Element destructors configured on the allocator run
// whenever storage is handed back, including on growth.
package container

import (
	"github.com/DongTao/tls-mempool/internal/tlspool"
)

const minVectorCap = 8

// Vector is a growable array backed by an ElementAllocator.
type Vector[T any] struct {
	alloc tlspool.ElementAllocator[T]
	data  []T // full allocation, len(data) is the capacity
	n     int
}

// NewVector returns an empty Vector. No storage is allocated until the
// first element is added.
func NewVector[T any](alloc tlspool.ElementAllocator[T]) *Vector[T] {
	return &Vector[T]{alloc: alloc}
}

// Len returns the number of elements.
func (v *Vector[T]) Len() int { return v.n }

// Cap returns the number of elements the current storage can hold.
func (v *Vector[T]) Cap() int { return len(v.data) }

// At returns element i. It panics if i is out of range.
func (v *Vector[T]) At(i int) T {
	return v.data[:v.n][i]
}

// Set replaces element i. It panics if i is out of range.
func (v *Vector[T]) Set(i int, value T) {
	v.data[:v.n][i] = value
}

// Append adds values at the end, growing the storage as needed.
func (v *Vector[T]) Append(values ...T) {
	if need := v.n + len(values); need > len(v.data) {
		v.grow(need)
	}
	v.n += copy(v.data[v.n:], values)
}

// Pop removes and returns the last element.
func (v *Vector[T]) Pop() (T, bool) {
	var zero T
	if v.n == 0 {
		return zero, false
	}
	v.n--
	value := v.data[v.n]
	v.data[v.n] = zero
	return value, true
}

// Reserve ensures capacity for at least n elements.
func (v *Vector[T]) Reserve(n int) {
	if n > len(v.data) {
		v.grow(n)
	}
}

// Slice returns the elements as a slice sharing the vector's storage. It
// is invalidated by the next call that grows or frees the vector.
func (v *Vector[T]) Slice() []T {
	return v.data[:v.n:v.n]
}

// Clear removes all elements and keeps the storage.
func (v *Vector[T]) Clear() {
	clear(v.data[:v.n])
	v.n = 0
}

// Free returns the storage to the allocator. The vector is empty and
// usable afterwards.
func (v *Vector[T]) Free() {
	if v.data != nil {
		v.alloc.Deallocate(v.data)
	}
	v.data, v.n = nil, 0
}

func (v *Vector[T]) grow(need int) {
	c := len(v.data) * 2
	if c < minVectorCap {
		c = minVectorCap
	}
	for c < need {
		c *= 2
	}

	data := v.alloc.Allocate(c)
	copy(data, v.data[:v.n])
	if v.data != nil {
		v.alloc.Deallocate(v.data)
	}
	v.data = data
}
