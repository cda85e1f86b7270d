package container

import (
	"unsafe"

	"github.com/DongTao/tls-mempool/internal/tlspool"
)

type node[T any] struct {
	value      T
	prev, next *node[T]
}

// List is a doubly linked list. Its nodes are allocated one at a time
// from the thread's pool for node[T], obtained by rebinding the
// element allocator.
type List[T any] struct {
	alloc      tlspool.Allocator[node[T]]
	head, tail *node[T]
	n          int
}

// NewList returns an empty List drawing nodes from alloc's thread and
// policy.
func NewList[T any](alloc tlspool.Allocator[T]) *List[T] {
	return &List[T]{alloc: tlspool.Rebind[node[T]](alloc)}
}

// Len returns the number of elements.
func (l *List[T]) Len() int { return l.n }

// PushBack appends value.
func (l *List[T]) PushBack(value T) {
	nd := l.newNode(value)
	nd.prev = l.tail
	if l.tail != nil {
		l.tail.next = nd
	} else {
		l.head = nd
	}
	l.tail = nd
	l.n++
}

// PushFront prepends value.
func (l *List[T]) PushFront(value T) {
	nd := l.newNode(value)
	nd.next = l.head
	if l.head != nil {
		l.head.prev = nd
	} else {
		l.tail = nd
	}
	l.head = nd
	l.n++
}

// Front returns the first element.
func (l *List[T]) Front() (T, bool) {
	if l.head == nil {
		var zero T
		return zero, false
	}
	return l.head.value, true
}

// Back returns the last element.
func (l *List[T]) Back() (T, bool) {
	if l.tail == nil {
		var zero T
		return zero, false
	}
	return l.tail.value, true
}

// PopFront removes and returns the first element.
func (l *List[T]) PopFront() (T, bool) {
	nd := l.head
	if nd == nil {
		var zero T
		return zero, false
	}
	l.unlink(nd)
	return l.freeNode(nd), true
}

// PopBack removes and returns the last element.
func (l *List[T]) PopBack() (T, bool) {
	nd := l.tail
	if nd == nil {
		var zero T
		return zero, false
	}
	l.unlink(nd)
	return l.freeNode(nd), true
}

// RemoveFunc removes every element for which match returns true and
// reports how many were removed.
func (l *List[T]) RemoveFunc(match func(T) bool) int {
	removed := 0
	for nd := l.head; nd != nil; {
		next := nd.next
		if match(nd.value) {
			l.unlink(nd)
			l.freeNode(nd)
			removed++
		}
		nd = next
	}
	return removed
}

// Each calls fn for each element from front to back until fn returns
// false.
func (l *List[T]) Each(fn func(T) bool) {
	for nd := l.head; nd != nil; nd = nd.next {
		if !fn(nd.value) {
			return
		}
	}
}

// Values returns the elements from front to back in a new slice.
func (l *List[T]) Values() []T {
	out := make([]T, 0, l.n)
	l.Each(func(v T) bool {
		out = append(out, v)
		return true
	})
	return out
}

// Free returns every node to the pool and empties the list.
func (l *List[T]) Free() {
	for nd := l.head; nd != nil; {
		next := nd.next
		l.freeNode(nd)
		nd = next
	}
	l.head, l.tail, l.n = nil, nil, 0
}

func (l *List[T]) newNode(value T) *node[T] {
	nd := &l.alloc.Allocate(1)[0]
	nd.value = value
	return nd
}

func (l *List[T]) unlink(nd *node[T]) {
	if nd.prev != nil {
		nd.prev.next = nd.next
	} else {
		l.head = nd.next
	}
	if nd.next != nil {
		nd.next.prev = nd.prev
	} else {
		l.tail = nd.prev
	}
	l.n--
}

// freeNode returns nd's chunk and yields its value.
func (l *List[T]) freeNode(nd *node[T]) T {
	value := nd.value
	l.alloc.Deallocate(unsafe.Slice(nd, 1))
	return value
}
