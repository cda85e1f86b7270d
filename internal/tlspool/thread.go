package tlspool

import (
	"reflect"
	"runtime"
	"sync/atomic"

	"github.com/DongTao/tls-mempool/internal/chunk"
	"github.com/DongTao/tls-mempool/internal/metrics"
)

var threadIDs atomic.Uint64

// Thread is the execution context that owns thread slots. It is not
// safe for concurrent use: only the goroutine that created it may use it.
type Thread struct {
	id     uint64
	slots  map[slotKey]*slot
	closed bool
}

// slotKey selects one backing pool on a thread.
type slotKey struct {
	elem   reflect.Type
	policy string
}

// slot binds one backing pool to a thread.
type slot struct {
	name   string
	policy chunk.Policy
	live   int
	obs    observer
}

// NewThread creates a Thread with no pools. Close it when the owning
// goroutine is done with it.
func NewThread() *Thread {
	return &Thread{
		id:    threadIDs.Add(1),
		slots: make(map[slotKey]*slot),
	}
}

// ID returns the thread's process-unique identifier.
func (t *Thread) ID() uint64 {
	return t.id
}

// Pools returns the number of backing pools bound to the thread.
func (t *Thread) Pools() int {
	return len(t.slots)
}

// Closed reports whether Close has been called.
func (t *Thread) Closed() bool {
	return t.closed
}

// Close tears down every pool bound to the thread. Outstanding objects
// are not destructed. Further operations on the thread report
// NoMemoryPool. Close is idempotent.
func (t *Thread) Close() {
	if t.closed {
		return
	}
	t.closed = true
	for key, s := range t.slots {
		delete(t.slots, key)
		s.obs.poolReleased(t, s, metrics.ReasonThreadExit)
	}
}

// Run calls fn with a fresh Thread on the calling goroutine, locked to
// its OS thread, and closes the Thread when fn returns or panics.
func Run(fn func(th *Thread)) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	th := NewThread()
	defer th.Close()

	fn(th)
}

// Go runs fn like Run on a new goroutine. The returned channel is closed
// after the Thread has been torn down.
func Go(fn func(th *Thread)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		Run(fn)
	}()
	return done
}
