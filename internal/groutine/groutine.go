package groutine

import (
	"context"
	"runtime/pprof"
	"sync"
)

type ctxKey string

const goroutineNameKey ctxKey = "goroutine_name"

// Go starts a named goroutine; the name is attached as a pprof label and to the context.
//
//	groutine.Go(ctx, "event-router", func(ctx context.Context) {
//	    // work
//	})
//
// If parentCtx is nil, context.Background() is used.
func Go(parentCtx context.Context, name string, fn func(ctx context.Context)) {
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	labels := pprof.Labels("goroutine_name", name)

	go pprof.Do(parentCtx, labels, func(ctx context.Context) {
		ctx = context.WithValue(ctx, goroutineNameKey, name)
		fn(ctx)
	})
}

// GetName retrieves the goroutine name from the context.
func GetName(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v := ctx.Value(goroutineNameKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Task is an owned handle to a named goroutine.
//
// Stop cancels the task's context and blocks until fn has returned, so once
// Stop returns the task can no longer observe or mutate shared state.
type Task struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Start runs fn in a named goroutine and returns its handle.
func Start(parentCtx context.Context, name string, fn func(ctx context.Context)) *Task {
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	t := &Task{
		name:   name,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	Go(ctx, name, func(ctx context.Context) {
		defer close(t.done)
		fn(ctx)
	})

	return t
}

// Name returns the goroutine name the task was started with
func (t *Task) Name() string {
	return t.name
}

// Stop cancels the task and waits for it to exit. Safe to call more than once
// and from multiple goroutines; must not be called from inside fn.
func (t *Task) Stop() {
	t.once.Do(t.cancel)
	<-t.done
}

// Done is closed once fn has returned
func (t *Task) Done() <-chan struct{} {
	return t.done
}
