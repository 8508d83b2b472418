package taskqueue

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type task struct {
	name string
	fn   func() error
}

// Queue runs background jobs on a fixed pool of workers. Jobs are
// best-effort: when the buffer is full Enqueue drops the job rather
// than block a request handler.
type Queue struct {
	log   *zap.Logger
	tasks chan task
	wg    sync.WaitGroup

	mu      sync.Mutex
	started bool
	closed  bool
}

func New(log *zap.Logger, buffer int) *Queue {
	if buffer <= 0 {
		buffer = 64
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Queue{
		log:   log,
		tasks: make(chan task, buffer),
	}
}

// Start launches the worker goroutines. Calling Start twice is a no-op.
func (q *Queue) Start(workers int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true

	if workers <= 0 {
		workers = 2
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for t := range q.tasks {
		q.run(t)
	}
}

func (q *Queue) run(t task) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("task panicked", zap.String("task", t.name), zap.Any("panic", r))
		}
	}()
	if err := t.fn(); err != nil {
		q.log.Warn("task failed", zap.String("task", t.name), zap.Error(err))
	}
}

// Enqueue schedules fn to run in the background. Returns false when the
// queue is shut down or its buffer is full.
func (q *Queue) Enqueue(name string, fn func() error) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.mu.Unlock()

	select {
	case q.tasks <- task{name: name, fn: fn}:
		return true
	default:
		q.log.Warn("task queue full, dropping task", zap.String("task", name))
		return false
	}
}

// Shutdown stops accepting new tasks and waits for in-flight ones to
// finish, or until ctx expires.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
