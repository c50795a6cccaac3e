// Package service assembles the feed, its stores and the tasker pipeline
// into one runnable unit used by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	taskerqueue "github.com/okian/glucofeed/internal/adapters/mq/queue"
	"github.com/okian/glucofeed/internal/adapters/mq/worker"
	"github.com/okian/glucofeed/internal/adapters/repository"
	"github.com/okian/glucofeed/internal/adapters/route"
	"github.com/okian/glucofeed/internal/adapters/status"
	"github.com/okian/glucofeed/internal/domain/commands"
	"github.com/okian/glucofeed/internal/domain/sgv"
	"github.com/okian/glucofeed/pkg/logger"
	"github.com/okian/glucofeed/pkg/metrics"
)

// ErrNotStarted is returned by operations that need a running service.
var ErrNotStarted = errors.New("service not started")

const (
	defaultQueueSize   = 64
	defaultDevice      = "xDrip-G6"
	stopTimeout        = 15 * time.Second
	defaultWebhookWait = 2 * time.Second
)

// Service owns every runtime component.
type Service struct {
	mu sync.RWMutex

	store    *repository.SQLiteStore
	tracker  *status.Tracker
	queue    *taskerqueue.InMemoryQueue
	pool     *worker.Pool
	finder   *route.Finder
	endpoint *sgv.Endpoint

	// Configuration
	dbPath         string
	workerCount    int
	queueSize      int
	device         string
	location       *time.Location
	webhookURL     string
	webhookTimeout time.Duration
	sink           worker.Sink

	started   bool
	startedAt time.Time

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDBPath sets the SQLite file. Use repository.MemoryPath for a throwaway store.
func WithDBPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.dbPath = path
		}
	}
}

// WithWorkerCount sets the number of tasker delivery workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the tasker queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDevice sets the collector name reported on every feed record.
func WithDevice(device string) Option {
	return func(s *Service) {
		if device != "" {
			s.device = device
		}
	}
}

// WithLocation sets the zone used to render dateString and sysTime.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithTaskerWebhook delivers tasker commands to url instead of the log.
func WithTaskerWebhook(url string, timeout time.Duration) Option {
	return func(s *Service) {
		s.webhookURL = url
		if timeout > 0 {
			s.webhookTimeout = timeout
		}
	}
}

// WithTaskerSink overrides the tasker destination entirely.
func WithTaskerSink(sink worker.Sink) Option {
	return func(s *Service) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		dbPath:         repository.MemoryPath,
		workerCount:    max(1, runtime.NumCPU()/4),
		queueSize:      defaultQueueSize,
		device:         defaultDevice,
		location:       time.UTC,
		webhookTimeout: defaultWebhookWait,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the store and starts the tasker workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting glucofeed service...")

	store, err := repository.Open(ctx, s.dbPath, repository.WithLogger(s.logger.Named("repository")))
	if err != nil {
		return fmt.Errorf("open readings store: %w", err)
	}
	s.store = store

	s.tracker = status.NewTracker(status.WithLogger(s.logger.Named("status")))
	s.queue = taskerqueue.NewInMemoryQueue(taskerqueue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s.taskerSink())

	s.finder = route.NewFinder(s.logger.Named("route"))
	route.NewHandlers(s.store, s.queue, route.WithLogger(s.logger.Named("route"))).RegisterAll(s.finder)
	s.endpoint = sgv.NewEndpoint(s.store, s.tracker, commands.NewRouteCommander(s.finder),
		sgv.WithDevice(s.device),
		sgv.WithDateFormatter(sgv.NightscoutFormatter(s.location)),
		sgv.WithLogger(s.logger.Named("sgv")),
	)
	route.RegisterFeed(s.finder, s.endpoint)

	// workers outlive ctx so Stop can drain commands already acknowledged
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "glucofeed service started",
		logger.String("db", s.dbPath),
		logger.String("device", s.device),
		logger.String("timezone", s.location.String()),
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
	)
	return nil
}

func (s *Service) taskerSink() worker.Sink {
	switch {
	case s.sink != nil:
		return s.sink
	case s.webhookURL != "":
		return worker.NewWebhookSink(s.webhookURL, worker.WithTimeout(s.webhookTimeout))
	default:
		return worker.NewLogSink(s.logger.Named("tasker"))
	}
}

// Stop shuts the workers down and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping glucofeed service...")

	ctx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close readings store: %w", err))
	}

	s.started = false
	s.logger.Info(ctx, "glucofeed service stopped")
	return errors.Join(errs...)
}

// Router returns the internal route finder, or nil before Start.
func (s *Service) Router() *route.Finder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.finder
}

// Status returns the status line tracker, or nil before Start.
func (s *Service) Status() *status.Tracker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tracker
}

// Store returns the readings store, or nil before Start.
func (s *Service) Store() *repository.SQLiteStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"device":      s.device,
		"timezone":    s.location.String(),
	}
	if !s.started {
		return stats
	}

	stats["uptimeSeconds"] = int64(time.Since(s.startedAt).Seconds())
	stats["queueLength"] = s.queue.Len()
	delivered, failed := s.pool.Stats()
	stats["taskerDelivered"] = delivered
	stats["taskerFailed"] = failed
	if n, err := s.store.Count(ctx); err == nil {
		stats["readings"] = n
		metrics.UpdateStoreReadings(n)
	} else {
		s.logger.Warn(ctx, "failed to count readings", logger.Error(err))
	}
	if line := s.tracker.Current(); line.Text != "" {
		stats["status"] = line.Text
	}

	metrics.UpdateTaskerQueueSize(s.queue.Len())
	return stats
}
