package sync

import (
	"context"
	"time"
)

// task is a cancellable scheduled poll, keyed by (purpose, conversation id).
// Cancellation is a first-class operation: switching the active conversation
// cancels the previous message task rather than relying on cleanup-on-unmount.
type task struct {
	key    string
	cancel context.CancelFunc
}

func (t *task) stop() {
	if t != nil && t.cancel != nil {
		t.cancel()
	}
}

// startTask fires fn immediately, then on every interval tick until the task
// is stopped. Ticks are fetch-then-merge units; a slow tick may overlap the
// next one, which the idempotent merges tolerate.
func startTask(parent context.Context, key string, interval time.Duration, fn func(ctx context.Context)) *task {
	ctx, cancel := context.WithCancel(parent)
	t := &task{key: key, cancel: cancel}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		fn(ctx)
		for {
			select {
			case <-ticker.C:
				go fn(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()

	return t
}
