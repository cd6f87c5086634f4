package sweeper

import (
	"context"
	"time"
)

// Task is a handle on a recurring job started by Every.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Every calls fn with the tick time once per period until ctx is cancelled or
// Stop is called. Ticks that arrive while fn is still running are coalesced
// by the underlying ticker.
func Every(ctx context.Context, period time.Duration, fn func(now time.Time)) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				fn(now)
			}
		}
	}()
	return t
}

// Stop cancels the task and waits for an in-flight call to return.
func (t *Task) Stop() {
	t.cancel()
	<-t.done
}

// Done is closed once the task has exited.
func (t *Task) Done() <-chan struct{} {
	return t.done
}
