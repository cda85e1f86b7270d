// Package pool provides a typed process-wide object pool built on
// sync.Pool.
//
// Shared is the baseline the thread pools are measured against: objects
// move freely between goroutines and the runtime may drop idle objects
// at any garbage collection.
//
// Pool activity is exposed via Prometheus alongside the thread pool
// metrics.
package pool
