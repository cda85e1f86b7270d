package tlspool

import (
	"errors"
	"fmt"
)

// Kind classifies the outcome of a pool operation.
type Kind int

const (
	Success      Kind = iota // operation completed
	Failed                   // raw allocation or construction failure
	NoMemoryPool             // the thread has no usable pool and none could be created
	FromElse                 // the object does not belong to the calling thread's pool
)

// String returns the snake_case name used in logs and metric labels.
func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Failed:
		return "failed"
	case NoMemoryPool:
		return "no_memory_pool"
	case FromElse:
		return "from_else"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	// ErrFailed is returned when chunks cannot be allocated or an object
	// cannot be constructed.
	ErrFailed = errors.New("tlspool: allocation failed")

	// ErrNoMemoryPool is returned when the calling thread's pool is
	// missing and cannot be created.
	ErrNoMemoryPool = errors.New("tlspool: no memory pool")

	// ErrFromElse is returned when an object is freed through a pool that
	// did not allocate it, typically from another thread.
	ErrFromElse = errors.New("tlspool: object belongs to another pool")

	// ErrInvalidCount is returned for array requests of less than one element.
	ErrInvalidCount = errors.New("tlspool: count must be greater than zero")

	// ErrThreadClosed is returned for operations on a closed Thread.
	ErrThreadClosed = errors.New("tlspool: thread closed")
)

// KindOf maps an error returned by this package to its Kind.
// A nil error is Success; errors of unknown origin are Failed.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, ErrFromElse):
		return FromElse
	case errors.Is(err, ErrNoMemoryPool):
		return NoMemoryPool
	default:
		return Failed
	}
}

// OutOfMemoryError is the panic value of Allocator.Allocate when the
// pool cannot satisfy a request.
type OutOfMemoryError struct {
	Pool  string
	Count int
	Err   error
}

func (e *OutOfMemoryError) Error() string {
	return fmt.Sprintf("tlspool: out of memory allocating %d from %s: %v", e.Count, e.Pool, e.Err)
}

func (e *OutOfMemoryError) Unwrap() error {
	return e.Err
}
