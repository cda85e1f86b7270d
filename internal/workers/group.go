// Package workers runs goroutines that each own a tlspool.Thread.
package workers

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/DongTao/tls-mempool/internal/tlspool"
)

// MemberFunc is the body of a group member. th is closed when it returns.
type MemberFunc func(ctx context.Context, th *tlspool.Thread) error

// Group runs members on their own goroutines and threads. The first
// member error cancels the group context.
type Group struct {
	g   *errgroup.Group
	ctx context.Context
}

// NewGroup returns a Group derived from ctx. limit bounds the number of
// members running at once; zero or less means unbounded.
func NewGroup(ctx context.Context, limit int) *Group {
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	return &Group{g: g, ctx: gctx}
}

// Context returns the group context.
func (g *Group) Context() context.Context {
	return g.ctx
}

// Go starts fn on a new goroutine with a fresh Thread. Members started
// after the group is cancelled do not run and report the context error.
func (g *Group) Go(fn MemberFunc) {
	g.g.Go(func() error {
		if err := g.ctx.Err(); err != nil {
			return err
		}
		return runMember(g.ctx, fn)
	})
}

// Wait blocks until every member has returned and their threads are
// closed, and returns the first error.
func (g *Group) Wait() error {
	return g.g.Wait()
}

func runMember(ctx context.Context, fn MemberFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("workers: member panicked: %v", r)
		}
	}()
	tlspool.Run(func(th *tlspool.Thread) {
		err = fn(ctx, th)
	})
	return err
}
