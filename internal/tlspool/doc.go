// Package tlspool provides per-thread object pools.
//
// Every Thread owns at most one backing pool per (element type, policy)
// pair. The pool is created lazily on first use, is never shared with
// another thread, and is torn down when the thread is closed. Allocation
// and free paths take no locks: isolation replaces synchronization.
//
// The package implements:
//   - Thread: the execution context that owns thread slots
//   - Pool: typed Create/Destroy of single objects and arrays with an
//     ownership check before every free, plus Purge and Release
//   - Allocator: an allocate/deallocate adapter for generic containers,
//     rebindable to other element types with Rebind
//
// A Thread must only be used by the goroutine that created it. Run and Go
// bind a fresh Thread to a goroutine locked to its OS thread and close it
// when the function returns:
//
//	tlspool.Run(func(th *tlspool.Thread) {
//		pool := tlspool.New[Order](chunk.DefaultFreeList())
//		o, err := pool.Create(th)
//		if err != nil {
//			return
//		}
//		defer pool.Destroy(th, o)
//	})
//
// Objects still outstanding when a thread closes or a pool is released
// lose their destructor call; only their memory is reclaimed. Destroy
// objects explicitly if destructor side effects matter.
//
// Errors are classified into the kinds Success, Failed, NoMemoryPool and
// FromElse. Pool operations never panic; Allocator.Allocate panics with
// an *OutOfMemoryError because allocator contracts have no error channel.
package tlspool
