package tlspool

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DongTao/tls-mempool/internal/chunk"
	"github.com/DongTao/tls-mempool/internal/events"
	"github.com/DongTao/tls-mempool/internal/metrics"
)

func TestNewThread(t *testing.T) {
	a := NewThread()
	b := NewThread()
	defer a.Close()
	defer b.Close()

	assert.NotZero(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 0, a.Pools())
	assert.False(t, a.Closed())
}

func TestThread_Close(t *testing.T) {
	m := metrics.NewPoolMetrics()
	broker := events.NewBroker()
	defer broker.Close()
	sub := broker.Subscribe("*")

	th := NewThread()
	orders := New[order](chunk.DefaultFreeList(), WithMetrics(m), WithEvents(broker))
	_, err := orders.Create(th)
	require.NoError(t, err)
	require.Equal(t, 1, th.Pools())

	th.Close()

	assert.True(t, th.Closed())
	assert.Equal(t, 0, th.Pools())
	assert.Equal(t, uint64(1), m.Stats().PoolsReleased)

	t.Run("operations after close report no memory pool", func(t *testing.T) {
		_, err := orders.Create(th)
		assert.ErrorIs(t, err, ErrNoMemoryPool)
		assert.ErrorIs(t, err, ErrThreadClosed)
		assert.Equal(t, NoMemoryPool, KindOf(orders.Purge(th)))
		assert.Equal(t, 0, th.Pools(), "closed thread must not get a new pool")
	})

	t.Run("close is idempotent", func(t *testing.T) {
		th.Close()
		assert.Equal(t, uint64(1), m.Stats().PoolsReleased)
	})

	t.Run("teardown event carries live count", func(t *testing.T) {
		var torn *events.PoolEvent
		for torn == nil {
			select {
			case e := <-sub.Events():
				if e.Type == events.PoolTornDown {
					torn = &e
				}
			case <-time.After(time.Second):
				t.Fatal("no teardown event")
			}
		}
		assert.Equal(t, th.ID(), torn.Thread)
		assert.Equal(t, 1, torn.Count)
	})
}

func TestThread_CloseSkipsDestructors(t *testing.T) {
	destructed := 0
	pool := New[order](chunk.DefaultFreeList(), WithDestructor(func(*order) { destructed++ }))

	Run(func(th *Thread) {
		for i := 0; i < 3; i++ {
			_, err := pool.Create(th)
			require.NoError(t, err)
		}
	})

	assert.Equal(t, 0, destructed, "thread exit reclaims memory only")
}

func TestRun(t *testing.T) {
	var captured *Thread
	Run(func(th *Thread) {
		captured = th
		assert.False(t, th.Closed())
	})
	require.NotNil(t, captured)
	assert.True(t, captured.Closed())
}

func TestRun_ClosesOnPanic(t *testing.T) {
	var captured *Thread
	assert.Panics(t, func() {
		Run(func(th *Thread) {
			captured = th
			panic("worker failed")
		})
	})
	require.NotNil(t, captured)
	assert.True(t, captured.Closed())
}

func TestGo(t *testing.T) {
	var mu sync.Mutex
	ids := make(map[uint64]bool)

	var dones []<-chan struct{}
	for i := 0; i < 4; i++ {
		dones = append(dones, Go(func(th *Thread) {
			mu.Lock()
			ids[th.ID()] = true
			mu.Unlock()
		}))
	}
	for _, done := range dones {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("goroutine did not finish")
		}
	}

	assert.Len(t, ids, 4, "every goroutine gets its own thread")
}

func TestBinding_FactoryFailure(t *testing.T) {
	tests := []struct {
		name    string
		factory chunk.Factory
	}{
		{"factory error", brokenFactory{}},
		{"factory panic", brokenFactory{panics: true}},
		{"nil policy", brokenFactory{nilPolicy: true}},
		{"nil factory", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := NewThread()
			defer th.Close()

			pool := New[order](tt.factory)

			obj, err := pool.Create(th)
			assert.Nil(t, obj)
			assert.Equal(t, NoMemoryPool, KindOf(err))
			assert.Equal(t, 0, th.Pools(), "slot must be cleared")

			assert.Equal(t, NoMemoryPool, KindOf(pool.Destroy(th, &order{})))
			assert.Equal(t, NoMemoryPool, KindOf(pool.Purge(th)))
		})
	}
}

func TestBinding_ZeroSizeType(t *testing.T) {
	th := NewThread()
	defer th.Close()

	pool := New[struct{}](chunk.DefaultFreeList())
	_, err := pool.Create(th)
	assert.ErrorIs(t, err, ErrNoMemoryPool)
	assert.ErrorIs(t, err, chunk.ErrZeroSize)
}

func TestBinding_NilThread(t *testing.T) {
	pool := New[order](chunk.DefaultFreeList())

	_, err := pool.Create(nil)
	assert.ErrorIs(t, err, ErrNoMemoryPool)

	// Should not panic
	pool.Release(nil)
	_, ok := pool.Stats(nil)
	assert.False(t, ok)
}

func TestBinding_OnePoolPerTypeAndPolicy(t *testing.T) {
	th := NewThread()
	defer th.Close()

	factory := chunk.DefaultFreeList()
	a := New[order](factory)
	b := New[order](factory)

	obj, err := a.Create(th)
	require.NoError(t, err)
	assert.Equal(t, 1, th.Pools())

	// Same type and policy share the slot
	require.NoError(t, b.Destroy(th, obj))
	assert.Equal(t, 1, th.Pools())

	// Other type, other slot
	_, err = New[tracked](factory).Create(th)
	require.NoError(t, err)
	assert.Equal(t, 2, th.Pools())

	// Other policy, other slot
	small, err := chunk.NewFreeList(chunk.Options{NextSize: 4})
	require.NoError(t, err)
	_, err = New[order](small).Create(th)
	require.NoError(t, err)
	assert.Equal(t, 3, th.Pools())
}

var errNoMemory = errors.New("no memory")
