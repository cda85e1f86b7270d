package tlspool

import (
	"github.com/DongTao/tls-mempool/internal/chunk"
)

// ElementAllocator is the allocation capability generic containers
// depend on.
type ElementAllocator[T any] interface {
	// Allocate returns n contiguous zeroed elements or panics.
	Allocate(n int) []T
	// Deallocate returns a slice obtained from Allocate.
	Deallocate(objs []T)
}

// Allocator adapts a Pool to ElementAllocator for one thread. It is a
// small value: copies are equivalent and share no state, which lives in
// the thread's slot for (T, policy).
type Allocator[T any] struct {
	th      *Thread
	factory chunk.Factory
	set     settings
	pool    *Pool[T]
}

var _ ElementAllocator[int] = Allocator[int]{}

// NewAllocator returns an Allocator drawing from th's pool for factory.
func NewAllocator[T any](th *Thread, factory chunk.Factory, opts ...Option) Allocator[T] {
	set := newSettings(opts)
	return Allocator[T]{
		th:      th,
		factory: factory,
		set:     set,
		pool:    newPool[T](factory, set),
	}
}

// Rebind returns an Allocator for element type U on the same thread and
// policy. Constructor and destructor options do not carry over.
func Rebind[U, T any](a Allocator[T]) Allocator[U] {
	set := a.set
	set.construct, set.destruct = nil, nil
	return Allocator[U]{
		th:      a.th,
		factory: a.factory,
		set:     set,
		pool:    newPool[U](a.factory, set),
	}
}

// Thread returns the thread the allocator draws from.
func (a Allocator[T]) Thread() *Thread {
	return a.th
}

// Equal reports whether memory from a can be deallocated through b.
func (a Allocator[T]) Equal(b Allocator[T]) bool {
	return a.th == b.th && a.pool != nil && b.pool != nil && a.pool.bind.key == b.pool.bind.key
}

// Allocate returns n constructed elements. It panics with an
// *OutOfMemoryError if the pool cannot satisfy the request.
func (a Allocator[T]) Allocate(n int) []T {
	if a.pool == nil {
		panic(&OutOfMemoryError{Count: n, Err: ErrNoMemoryPool})
	}
	objs, err := a.pool.CreateN(a.th, n)
	if err != nil {
		panic(&OutOfMemoryError{Pool: a.pool.Name(), Count: n, Err: err})
	}
	return objs
}

// Deallocate destructs and frees objs. Failures, such as objs belonging
// to another thread, cannot be returned; they are passed to the dealloc
// handler and published as dealloc.failed events.
func (a Allocator[T]) Deallocate(objs []T) {
	if a.pool == nil || len(objs) == 0 {
		return
	}
	err := a.pool.DestroyN(a.th, objs)
	if err == nil {
		return
	}

	a.set.obs.deallocFailed(a.th, a.pool.Name(), len(objs), err)
	if a.set.onDealloc != nil {
		a.set.onDealloc(err)
		return
	}
	a.set.obs.log().Warn("deallocation failed",
		"pool", a.pool.Name(),
		"count", len(objs),
		"kind", KindOf(err).String(),
		"error", err,
	)
}
