// Package queue buffers tasker commands between the HTTP side-channel and
// the delivery workers.
package queue

import (
	"context"
	"sync"

	"github.com/okian/glucofeed/internal/domain/model"
	"github.com/okian/glucofeed/pkg/metrics"
)

const defaultCapacity = 64

// Command is the payload flowing through the queue.
type Command = model.TaskerCommand

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a command. It returns false when the queue is full or closed.
	Enqueue(ctx context.Context, c Command) bool

	// Dequeue returns a channel receiving commands until the queue is closed.
	Dequeue(ctx context.Context) <-chan Command

	// Len returns the number of pending commands.
	Len() int

	// Close stops accepting commands. Pending ones can still be drained.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	commands chan Command
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a bounded queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.commands = make(chan Command, q.capacity)

	metrics.UpdateTaskerQueueCapacity(q.capacity)
	metrics.UpdateTaskerQueueSize(0)
	return q
}

// Capacity returns the maximum number of pending commands.
func (q *InMemoryQueue) Capacity() int { return q.capacity }

// Enqueue adds a command without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, c Command) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordTaskerRejected(ReasonClosed)
		return false
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordTaskerRejected(ReasonCancelled)
		return false
	}

	select {
	case q.commands <- c:
		metrics.RecordTaskerEnqueued()
		metrics.UpdateTaskerQueueSize(len(q.commands))
		return true
	default:
		metrics.RecordTaskerRejected(ReasonFull)
		return false
	}
}

// Dequeue returns a channel that receives commands as they become available.
// The channel is closed once the queue is closed and drained, or ctx ends.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Command {
	out := make(chan Command)
	go func() {
		defer close(out)
		for c := range q.commands {
			select {
			case out <- c:
				metrics.UpdateTaskerQueueSize(len(q.commands))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of pending commands.
func (q *InMemoryQueue) Len() int {
	return len(q.commands)
}

// Close stops the queue. Calling it more than once is a no-op.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.commands)
	q.closed = true
	return nil
}

// IsClosed reports whether Close has been called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
