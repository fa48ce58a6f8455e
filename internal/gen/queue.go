package gen

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultCooldown is the pause enforced between queue task executions to
// keep the request rate under backend limits.
const DefaultCooldown = 500 * time.Millisecond

// ErrQueueClosed is returned by Submit after Close.
var ErrQueueClosed = errors.New("gen: queue closed")

// Task is one unit of backend work owned by the queue until it completes.
type Task func(ctx context.Context) (any, error)

type taskResult struct {
	value any
	err   error
}

type queueTask struct {
	ctx    context.Context
	op     Task
	result chan taskResult
}

// Queue serializes backend calls: tasks execute strictly one at a time in
// submission order, with a fixed cool-down after each completion. One task's
// failure is reported only to its own submitter; the queue keeps going.
//
// A Queue is an explicitly constructed, owned object (one per editing or
// export session), not ambient global state.
type Queue struct {
	cooldown time.Duration
	logger   zerolog.Logger

	mu     sync.Mutex
	closed bool
	tasks  chan *queueTask
	done   chan struct{}
}

// NewQueue starts the dispatcher goroutine. A non-positive cooldown falls
// back to DefaultCooldown.
func NewQueue(cooldown time.Duration, logger zerolog.Logger) *Queue {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	q := &Queue{
		cooldown: cooldown,
		logger:   logger,
		tasks:    make(chan *queueTask, 64),
		done:     make(chan struct{}),
	}
	go q.dispatch()
	return q
}

func (q *Queue) dispatch() {
	defer close(q.done)
	for t := range q.tasks {
		value, err := q.run(t)
		t.result <- taskResult{value: value, err: err}
		time.Sleep(q.cooldown)
	}
}

func (q *Queue) run(t *queueTask) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error().Interface("panic", r).Msg("queue task panicked")
			err = errors.New("gen: queue task panicked")
		}
	}()
	return t.op(t.ctx)
}

// Submit appends the task to the backlog and blocks until it has run. The
// queue never discards accepted work: once submitted, the task eventually
// runs (possibly against an already-cancelled context) and the result or
// error always reaches the caller.
func (q *Queue) Submit(ctx context.Context, op Task) (any, error) {
	t := &queueTask{ctx: ctx, op: op, result: make(chan taskResult, 1)}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrQueueClosed
	}
	q.tasks <- t
	q.mu.Unlock()

	res := <-t.result
	return res.value, res.err
}

// Do is a typed wrapper around Submit.
func Do[T any](ctx context.Context, q *Queue, fn func(context.Context) (T, error)) (T, error) {
	value, err := q.Submit(ctx, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	out, ok := value.(T)
	if !ok {
		var zero T
		return zero, errors.New("gen: unexpected task result type")
	}
	return out, nil
}

// Close stops accepting new tasks, lets the backlog drain and waits for the
// dispatcher to exit.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()
	<-q.done
}
