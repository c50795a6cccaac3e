// Package worker delivers queued tasker commands to a Sink.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/glucofeed/internal/domain/model"
	"github.com/okian/glucofeed/pkg/logger"
	"github.com/okian/glucofeed/pkg/metrics"
)

const poolShutdownTimeout = 10 * time.Second

// Command is what workers read off the queue.
type Command = model.TaskerCommand

// Queue defines how workers receive commands.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Command
}

// Sink is the final destination of a tasker command.
type Sink interface {
	Deliver(ctx context.Context, c Command) error
}

// Worker delivers commands until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown drains the queue until it closes, giving up when ctx ends.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue Queue
	sink  Sink
	name  string

	delivered atomic.Int64
	failed    atomic.Int64

	shutdown  chan struct{}
	abort     chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
	abortOnce sync.Once

	logger logger.Logger
}

// NewInMemoryWorker creates a worker with configuration options.
func NewInMemoryWorker(queue Queue, sink Sink, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		sink:     sink,
		name:     "worker",
		shutdown: make(chan struct{}),
		abort:    make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop. After Shutdown it keeps delivering until the
// queue channel closes, so accepted commands are not dropped.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	dctx, cancel := context.WithCancel(ctx)
	defer cancel()

	commands := w.queue.Dequeue(dctx)
	shutdown := w.shutdown
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.abort:
			return
		case <-shutdown:
			shutdown = nil
			w.logger.Debug(ctx, "draining queue before exit")
		case c, ok := <-commands:
			if !ok {
				return
			}
			if err := w.deliver(ctx, c); err != nil {
				w.logger.Error(ctx, "tasker delivery failed", logger.String("id", c.ID), logger.Error(err))
			}
		}
	}
}

// Shutdown signals the worker and waits for it to drain the queue. When ctx
// ends first the worker is aborted and pending commands are abandoned.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.abortOnce.Do(func() { close(w.abort) })
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("worker %s shutdown: %w", w.name, ctx.Err())
	}
}

// Delivered returns the number of commands handed to the sink successfully.
func (w *InMemoryWorker) Delivered() int64 { return w.delivered.Load() }

// Failed returns the number of commands the sink refused.
func (w *InMemoryWorker) Failed() int64 { return w.failed.Load() }

func (w *InMemoryWorker) deliver(ctx context.Context, c Command) error {
	start := time.Now()
	if err := w.sink.Deliver(ctx, c); err != nil {
		w.failed.Add(1)
		metrics.RecordTaskerDeliveryError()
		return fmt.Errorf("deliver %s: %w", c.Word, err)
	}
	w.delivered.Add(1)
	metrics.RecordTaskerDelivered(float64(time.Since(start).Microseconds()) / 1000)
	return nil
}

// Pool manages a fixed set of workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates workerCount workers. Counts below one are raised to one.
func NewPool(workerCount int, queue Queue, sink Sink) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Named("worker-pool"),
	}
	for i := range p.workers {
		p.workers[i] = NewInMemoryWorker(queue, sink, WithName("worker-"+strconv.Itoa(i)))
	}

	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start runs every worker in its own goroutine.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Stats sums delivery counters across workers.
func (p *Pool) Stats() (delivered, failed int64) {
	for _, w := range p.workers {
		delivered += w.Delivered()
		failed += w.Failed()
	}
	return delivered, failed
}

// Shutdown closes the queue when it supports closing, then waits for every
// worker to deliver what is still buffered.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var g errgroup.Group
	for _, w := range p.workers {
		g.Go(func() error { return w.Shutdown(ctx) })
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("worker pool shutdown: %w", err)
	}
	metrics.UpdateWorkerCount(0)
	return nil
}
