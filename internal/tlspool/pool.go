package tlspool

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/DongTao/tls-mempool/internal/chunk"
)

// Pool creates and destroys objects of type T in the calling thread's
// backing pool. A Pool holds no per-thread state and may be shared by
// any number of goroutines, each passing its own Thread. Pools with the
// same element type and policy name share the thread's backing pool.
type Pool[T any] struct {
	bind      binding
	construct func(*T) error
	destruct  func(*T)
}

// Stats describes the calling thread's backing pool for a Pool.
type Stats struct {
	Live   int // objects created and not yet destroyed
	Policy chunk.Stats
}

// New returns a Pool backed by policies from factory. It panics if a
// constructor or destructor option was built for another element type.
func New[T any](factory chunk.Factory, opts ...Option) *Pool[T] {
	return newPool[T](factory, newSettings(opts))
}

func newPool[T any](factory chunk.Factory, s settings) *Pool[T] {
	p := &Pool[T]{
		bind: newBinding(reflect.TypeOf((*T)(nil)).Elem(), factory, s.obs),
	}
	if s.construct != nil {
		fn, ok := s.construct.(func(*T) error)
		if !ok {
			panic(fmt.Sprintf("tlspool: constructor %T does not match Pool[%s]", s.construct, p.bind.key.elem))
		}
		p.construct = fn
	}
	if s.destruct != nil {
		fn, ok := s.destruct.(func(*T))
		if !ok {
			panic(fmt.Sprintf("tlspool: destructor %T does not match Pool[%s]", s.destruct, p.bind.key.elem))
		}
		p.destruct = fn
	}
	return p
}

// Name returns the pool label, "<type>@<policy>".
func (p *Pool[T]) Name() string {
	return p.bind.name
}

// Create returns a newly constructed object from th's pool, creating the
// pool on first use. On failure no chunk stays allocated.
func (p *Pool[T]) Create(th *Thread) (*T, error) {
	s, err := p.bind.get(th)
	if err != nil {
		p.bind.obs.createFailed(p.bind.name, err)
		return nil, err
	}

	raw, err := allocate(s.policy, 1, false)
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrFailed, p.bind.name, err)
		p.bind.obs.createFailed(p.bind.name, err)
		return nil, err
	}

	obj := (*T)(raw)
	var zero T
	*obj = zero
	if cerr := p.constructOne(obj); cerr != nil {
		*obj = zero
		s.policy.FreeChunk(raw)
		err = fmt.Errorf("%w: constructing %s: %w", ErrFailed, p.bind.name, cerr)
		p.bind.obs.createFailed(p.bind.name, err)
		return nil, err
	}

	s.live++
	p.bind.obs.created(s, 1)
	return obj, nil
}

// CreateN returns count contiguous objects, constructed in order. If any
// element fails to construct, the whole block is returned to the pool
// without destructing the elements already constructed.
func (p *Pool[T]) CreateN(th *Thread, count int) ([]T, error) {
	if count < 1 {
		err := fmt.Errorf("%w: %w: %d", ErrFailed, ErrInvalidCount, count)
		p.bind.obs.createFailed(p.bind.name, err)
		return nil, err
	}

	s, err := p.bind.get(th)
	if err != nil {
		p.bind.obs.createFailed(p.bind.name, err)
		return nil, err
	}

	raw, err := allocate(s.policy, count, true)
	if err != nil {
		err = fmt.Errorf("%w: %s: %d objects: %w", ErrFailed, p.bind.name, count, err)
		p.bind.obs.createFailed(p.bind.name, err)
		return nil, err
	}

	objs := unsafe.Slice((*T)(raw), count)
	clear(objs)
	for i := range objs {
		if cerr := p.constructOne(&objs[i]); cerr != nil {
			clear(objs)
			s.policy.FreeOrderedChunks(raw, count)
			err = fmt.Errorf("%w: constructing %s element %d: %w", ErrFailed, p.bind.name, i, cerr)
			p.bind.obs.createFailed(p.bind.name, err)
			return nil, err
		}
	}

	s.live += count
	p.bind.obs.created(s, count)
	return objs, nil
}

// Destroy destructs obj and returns its chunk to th's pool. A nil obj is
// a no-op. If th's pool does not own obj, ErrFromElse is returned and
// nothing is freed. A panicking destructor still frees the chunk and is
// reported as ErrFailed, so obj must not be destroyed again.
func (p *Pool[T]) Destroy(th *Thread, obj *T) error {
	if obj == nil {
		return nil
	}

	s, err := p.bind.get(th)
	if err != nil {
		p.bind.obs.destroyFailed(th, p.bind.name, 1, err)
		return err
	}

	raw := unsafe.Pointer(obj)
	if !s.policy.Owns(raw) {
		err = fmt.Errorf("%w: %s: %p", ErrFromElse, p.bind.name, obj)
		p.bind.obs.destroyFailed(th, p.bind.name, 1, err)
		return err
	}

	derr := p.destructOne(obj)
	var zero T
	*obj = zero
	s.policy.FreeChunk(raw)
	s.live--
	p.bind.obs.destroyed(s, 1)

	if derr != nil {
		return fmt.Errorf("%w: destructing %s: %w", ErrFailed, p.bind.name, derr)
	}
	return nil
}

// DestroyN destructs the elements of objs in order and returns the block
// to th's pool. objs must be exactly the slice returned by CreateN: the
// count is taken from len(objs) and is not validated against the
// allocation. A nil or empty slice is a no-op.
func (p *Pool[T]) DestroyN(th *Thread, objs []T) error {
	if len(objs) == 0 {
		return nil
	}

	s, err := p.bind.get(th)
	if err != nil {
		p.bind.obs.destroyFailed(th, p.bind.name, len(objs), err)
		return err
	}

	raw := unsafe.Pointer(unsafe.SliceData(objs))
	if !s.policy.Owns(raw) {
		err = fmt.Errorf("%w: %s: %p", ErrFromElse, p.bind.name, raw)
		p.bind.obs.destroyFailed(th, p.bind.name, len(objs), err)
		return err
	}

	var derr error
	for i := range objs {
		if e := p.destructOne(&objs[i]); e != nil && derr == nil {
			derr = fmt.Errorf("element %d: %w", i, e)
		}
	}
	count := len(objs)
	clear(objs)
	s.policy.FreeOrderedChunks(raw, count)
	s.live -= count
	p.bind.obs.destroyed(s, count)

	if derr != nil {
		return fmt.Errorf("%w: destructing %s: %w", ErrFailed, p.bind.name, derr)
	}
	return nil
}

// Purge releases the memory of th's fully free blocks, creating the pool
// if th has none. Live objects are untouched.
func (p *Pool[T]) Purge(th *Thread) (err error) {
	s, err := p.bind.get(th)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: purging %s: %v", ErrFailed, p.bind.name, r)
		}
	}()
	blocks := s.policy.Purge()
	p.bind.obs.purged(th, s, blocks)
	return nil
}

// Release tears down th's backing pool for this Pool. Outstanding
// objects are not destructed and must not be used afterwards. The next
// operation on th creates a fresh pool.
func (p *Pool[T]) Release(th *Thread) {
	p.bind.release(th)
}

// Stats reports th's backing pool without creating it. ok is false if th
// has no pool for this Pool.
func (p *Pool[T]) Stats(th *Thread) (stats Stats, ok bool) {
	s := p.bind.lookup(th)
	if s == nil {
		return Stats{}, false
	}
	return Stats{Live: s.live, Policy: s.policy.Stats()}, true
}

func (p *Pool[T]) constructOne(obj *T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("constructor panicked: %v", r)
		}
	}()
	if p.construct != nil {
		return p.construct(obj)
	}
	if c, ok := any(obj).(Constructor); ok {
		return c.Construct()
	}
	return nil
}

func (p *Pool[T]) destructOne(obj *T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("destructor panicked: %v", r)
		}
	}()
	if p.destruct != nil {
		p.destruct(obj)
		return nil
	}
	if d, ok := any(obj).(Destructor); ok {
		d.Destruct()
	}
	return nil
}

// allocate requests chunks from a policy, converting panics and nil
// results into errors.
func allocate(policy chunk.Policy, n int, ordered bool) (p unsafe.Pointer, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("policy panicked: %v", r)
		}
	}()
	if ordered {
		p, err = policy.AllocateOrderedChunks(n)
	} else {
		p, err = policy.AllocateChunk()
	}
	if err == nil && p == nil {
		err = chunk.ErrExhausted
	}
	return p, err
}
