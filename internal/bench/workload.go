package bench

import (
	"context"
	"fmt"

	"github.com/DongTao/tls-mempool/internal/config"
	"github.com/DongTao/tls-mempool/internal/container"
	"github.com/DongTao/tls-mempool/internal/pool"
	"github.com/DongTao/tls-mempool/internal/tlspool"
)

// record is the benchmark element: a few cache lines of mixed fields.
type record struct {
	ID      uint64
	Owner   uint64
	Score   float64
	Payload [5]int64
}

// Construct stamps the record so construction cannot be optimised away.
func (r *record) Construct() error {
	r.Score = 1
	return nil
}

func resetRecord(r *record) {
	*r = record{}
}

// workload runs one mode's rounds on a member thread and reports the
// operations done and failed.
type workload func(ctx context.Context, th *tlspool.Thread) (ops, failures int, err error)

func (r *Runner) workload(mode string) (workload, error) {
	switch mode {
	case config.ModePool:
		return r.poolRounds, nil
	case config.ModeHeap:
		return r.heapRounds, nil
	case config.ModeArray:
		return r.arrayRounds, nil
	case config.ModeContainer:
		return r.containerRounds, nil
	case config.ModeShared:
		return r.sharedRounds, nil
	default:
		return nil, fmt.Errorf("bench: unknown mode %q", mode)
	}
}

func (r *Runner) poolRounds(ctx context.Context, th *tlspool.Thread) (ops, failures int, err error) {
	defer r.records.Release(th)

	objs := make([]*record, 0, r.opts.Objects)
	for round := 0; round < r.opts.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return ops, failures, err
		}

		objs = objs[:0]
		for i := 0; i < r.opts.Objects; i++ {
			obj, err := r.records.Create(th)
			if err != nil {
				failures++
				continue
			}
			obj.ID = uint64(i)
			obj.Owner = th.ID()
			objs = append(objs, obj)
		}
		ops += len(objs)

		for _, obj := range objs {
			if err := r.records.Destroy(th, obj); err != nil {
				failures++
				continue
			}
			ops++
		}

		if err := r.records.Purge(th); err != nil {
			failures++
		}
	}
	return ops, failures, nil
}

func (r *Runner) heapRounds(ctx context.Context, th *tlspool.Thread) (ops, failures int, err error) {
	objs := make([]*record, r.opts.Objects)
	for round := 0; round < r.opts.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return ops, failures, err
		}
		for i := range objs {
			obj := new(record)
			_ = obj.Construct()
			obj.ID = uint64(i)
			obj.Owner = th.ID()
			objs[i] = obj
		}
		clear(objs)
		ops += 2 * len(objs)
	}
	return ops, failures, nil
}

// sharedRounds runs the pool workload against one process-wide
// sync.Pool shared by every member.
func (r *Runner) sharedRounds(ctx context.Context, th *tlspool.Thread) (ops, failures int, err error) {
	objs := make([]*record, r.opts.Objects)
	for round := 0; round < r.opts.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return ops, failures, err
		}
		for i := range objs {
			obj := r.shared.Get()
			_ = obj.Construct()
			obj.ID = uint64(i)
			obj.Owner = th.ID()
			objs[i] = obj
		}
		for i, obj := range objs {
			r.shared.Put(obj)
			objs[i] = nil
		}
		ops += 2 * len(objs)
	}
	return ops, failures, nil
}

func (r *Runner) arrayRounds(ctx context.Context, th *tlspool.Thread) (ops, failures int, err error) {
	defer r.records.Release(th)

	size := r.opts.ArraySize
	blocks := r.opts.Objects / size
	if blocks == 0 {
		blocks = 1
	}

	held := make([][]record, 0, blocks)
	for round := 0; round < r.opts.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return ops, failures, err
		}

		held = held[:0]
		for i := 0; i < blocks; i++ {
			objs, err := r.records.CreateN(th, size)
			if err != nil {
				failures++
				continue
			}
			objs[0].ID = uint64(i)
			held = append(held, objs)
		}
		ops += len(held) * size

		for _, objs := range held {
			if err := r.records.DestroyN(th, objs); err != nil {
				failures++
				continue
			}
			ops += size
		}

		if err := r.records.Purge(th); err != nil {
			failures++
		}
	}
	return ops, failures, nil
}

func (r *Runner) containerRounds(ctx context.Context, th *tlspool.Thread) (ops, failures int, err error) {
	alloc := tlspool.NewAllocator[record](th, r.opts.Factory, r.poolOptions()...)

	for round := 0; round < r.opts.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return ops, failures, err
		}
		n, failed := r.containerRound(th, alloc)
		ops += n
		if failed {
			failures++
		}
	}
	return ops, failures, nil
}

// containerRound fills a Vector and a List and frees both. Allocation
// failures panic through the allocator and end the round.
func (r *Runner) containerRound(th *tlspool.Thread, alloc tlspool.Allocator[record]) (ops int, failed bool) {
	vec := container.NewVector[record](alloc)
	list := container.NewList[uint64](tlspool.Rebind[uint64](alloc))
	defer func() {
		if rec := recover(); rec != nil {
			if _, ok := rec.(*tlspool.OutOfMemoryError); !ok {
				panic(rec)
			}
			failed = true
		}
		vec.Free()
		list.Free()
	}()

	for i := 0; i < r.opts.Objects; i++ {
		vec.Append(record{ID: uint64(i), Owner: th.ID()})
		list.PushBack(uint64(i))
	}
	for list.Len() > 0 {
		list.PopFront()
	}
	return 2 * vec.Len(), false
}
