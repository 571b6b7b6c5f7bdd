package transport

import (
	"context"
	"fmt"
	"sync"
)

// EventLoop is the worker group that runs transport callbacks off the
// callers' goroutines. Shutdown drains queued tasks and waits for the
// workers to exit, which is the last stage of manager shutdown.
type EventLoop struct {
	tasks chan func()
	done  chan struct{}

	mu      sync.Mutex
	stopped bool
}

// NewEventLoop starts an event loop with the given number of workers.
func NewEventLoop(workers int) *EventLoop {
	if workers < 1 {
		workers = 1
	}
	e := &EventLoop{
		tasks: make(chan func(), 256),
		done:  make(chan struct{}),
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range e.tasks {
				task()
			}
		}()
	}
	go func() {
		wg.Wait()
		close(e.done)
	}()
	return e
}

// LoopAttacher is implemented by factories whose connections hand listener
// callbacks to a shared event loop instead of running them on the I/O
// goroutines. The connection manager attaches its loop to the factory it
// was built with.
type LoopAttacher interface {
	AttachEventLoop(loop *EventLoop)
}

// Submit queues a task for execution. It returns false if the loop has
// been shut down.
func (e *EventLoop) Submit(task func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return false
	}
	e.tasks <- task
	return true
}

// Shutdown stops accepting tasks, lets queued tasks run, and waits for the
// workers to exit or the context to expire.
func (e *EventLoop) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if !e.stopped {
		e.stopped = true
		close(e.tasks)
	}
	e.mu.Unlock()

	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event loop shutdown interrupted: %v", ctx.Err())
	}
}
