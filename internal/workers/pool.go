package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Jeffail/tunny"

	"github.com/DongTao/tls-mempool/internal/tlspool"
)

// ErrPoolClosed is returned by Process after Close.
var ErrPoolClosed = errors.New("workers: pool closed")

// JobFunc is a unit of work run on one of the pool's threads.
type JobFunc func(th *tlspool.Thread) error

type job struct {
	ctx context.Context
	fn  JobFunc
}

// Pool is a fixed set of tunny workers. Each running job holds one of
// the pool's threads exclusively, so pooled objects created by a job
// can be destroyed by a later job that receives the same thread.
type Pool struct {
	size    int
	wp      *tunny.WorkPool
	threads chan *tlspool.Thread

	mu     sync.RWMutex
	closed bool
}

// NewPool starts a pool of size workers, each with its own Thread.
func NewPool(size int) (*Pool, error) {
	if size < 1 {
		return nil, fmt.Errorf("workers: pool size must be at least 1, got %d", size)
	}

	p := &Pool{
		size:    size,
		threads: make(chan *tlspool.Thread, size),
	}
	for i := 0; i < size; i++ {
		p.threads <- tlspool.NewThread()
	}

	wp, err := tunny.CreatePool(size, p.work).Open()
	if err != nil {
		p.closeThreads()
		return nil, fmt.Errorf("workers: starting pool: %w", err)
	}
	p.wp = wp

	slog.Debug("worker pool started", "workers", size)
	return p, nil
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Process runs fn on a free worker and returns its error. Jobs whose
// context is done by the time a worker picks them up are skipped.
func (p *Pool) Process(ctx context.Context, fn JobFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	out, err := p.wp.SendWork(job{ctx: ctx, fn: fn})
	if err != nil {
		return fmt.Errorf("workers: sending job: %w", err)
	}
	if out == nil {
		return nil
	}
	return out.(error)
}

// Close stops the workers and closes their threads. Pools bound to the
// threads are torn down. Close is idempotent.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true

	if err := p.wp.Close(); err != nil {
		slog.Warn("worker pool close failed", "error", err)
	}
	p.closeThreads()
	slog.Debug("worker pool stopped", "workers", p.size)
}

func (p *Pool) work(payload interface{}) interface{} {
	j, ok := payload.(job)
	if !ok {
		return fmt.Errorf("workers: unexpected payload %T", payload)
	}
	if err := j.ctx.Err(); err != nil {
		return err
	}

	th := <-p.threads
	defer func() { p.threads <- th }()

	if err := runJob(th, j.fn); err != nil {
		return err
	}
	return nil
}

func runJob(th *tlspool.Thread, fn JobFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("workers: job panicked: %v", r)
		}
	}()
	return fn(th)
}

// closeThreads runs after every worker has stopped, so all threads are
// back in the channel.
func (p *Pool) closeThreads() {
	for i := 0; i < p.size; i++ {
		th := <-p.threads
		th.Close()
	}
}
