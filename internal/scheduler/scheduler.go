// Package scheduler provides bounded-concurrency fan-out for pipeline stages.
// Both layers of the run use it: sources fan out across feeds, and each feed
// fans out across its items.
//
// Tasks are isolated: a task reports its own outcome and never cancels its
// siblings. Context cancellation stops new tasks from starting; tasks already
// running receive the context and decide for themselves.
package scheduler

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Bounded runs tasks with a fixed concurrency ceiling.
type Bounded struct {
	// Limit is the maximum number of tasks running at once. Values below 1
	// are treated as 1.
	Limit int

	// Pause is slept after each task completes, while still holding the
	// task's slot. It spaces out requests against upstreams that dislike
	// bursts. Zero disables the pause.
	Pause time.Duration
}

// Each runs task(ctx, i) for every i in [0, n), at most Limit at a time.
// It returns once every started task has settled. Tasks do not return
// errors; recording outcomes is the task's own responsibility.
func (b Bounded) Each(ctx context.Context, n int, task func(ctx context.Context, i int)) {
	limit := b.Limit
	if limit < 1 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// The slot may have been acquired after cancellation.
			if ctx.Err() != nil {
				return nil
			}
			task(ctx, i)
			b.pause(ctx)
			return nil
		})
	}

	_ = g.Wait()
}

// Run executes each closure in tasks under the same bounds as Each.
func (b Bounded) Run(ctx context.Context, tasks []func(context.Context)) {
	b.Each(ctx, len(tasks), func(ctx context.Context, i int) {
		tasks[i](ctx)
	})
}

// pause holds the slot for the configured duration. Cancellation cuts the
// pause short since there is no point spacing out work that will not start.
func (b Bounded) pause(ctx context.Context) {
	if b.Pause <= 0 {
		return
	}
	select {
	case <-time.After(b.Pause):
	case <-ctx.Done():
	}
}
