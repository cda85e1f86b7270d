package tlspool

import (
	"fmt"
	"reflect"

	"github.com/DongTao/tls-mempool/internal/chunk"
	"github.com/DongTao/tls-mempool/internal/metrics"
)

// binding addresses the thread slot of one (element type, policy) pair
// and creates the backing pool on demand.
type binding struct {
	key     slotKey
	name    string
	factory chunk.Factory
	obs     observer
}

func newBinding(elem reflect.Type, factory chunk.Factory, obs observer) binding {
	policy := "<nil>"
	if factory != nil {
		policy = factory.Name()
	}
	return binding{
		key:     slotKey{elem: elem, policy: policy},
		name:    elem.String() + "@" + policy,
		factory: factory,
		obs:     obs,
	}
}

// get returns the thread's backing pool, creating it on first use.
// Factory errors and panics are contained: the slot is left empty and
// ErrNoMemoryPool is returned.
func (b *binding) get(th *Thread) (s *slot, err error) {
	if th == nil {
		return nil, fmt.Errorf("%w: nil thread", ErrNoMemoryPool)
	}
	if th.closed {
		return nil, fmt.Errorf("%w: %w", ErrNoMemoryPool, ErrThreadClosed)
	}
	if s = th.slots[b.key]; s != nil {
		return s, nil
	}
	if b.factory == nil {
		return nil, fmt.Errorf("%w: no policy for %s", ErrNoMemoryPool, b.key.elem)
	}

	defer func() {
		if r := recover(); r != nil {
			delete(th.slots, b.key)
			s, err = nil, fmt.Errorf("%w: creating %s: %v", ErrNoMemoryPool, b.name, r)
		}
	}()

	policy, err := b.factory.New(b.key.elem)
	if err != nil {
		return nil, fmt.Errorf("%w: creating %s: %w", ErrNoMemoryPool, b.name, err)
	}
	if policy == nil {
		return nil, fmt.Errorf("%w: creating %s: policy factory returned nil", ErrNoMemoryPool, b.name)
	}

	s = &slot{name: b.name, policy: policy, obs: b.obs}
	th.slots[b.key] = s
	b.obs.poolCreated(th, s)
	return s, nil
}

// lookup returns the thread's backing pool without creating one.
func (b *binding) lookup(th *Thread) *slot {
	if th == nil || th.closed {
		return nil
	}
	return th.slots[b.key]
}

// release drops the thread's backing pool and all its bookkeeping.
func (b *binding) release(th *Thread) {
	s := b.lookup(th)
	if s == nil {
		return
	}
	delete(th.slots, b.key)
	s.obs.poolReleased(th, s, metrics.ReasonRelease)
}
