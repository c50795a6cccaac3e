// Package status holds the most recent external status line (for example
// loop insulin-on-board text) that the sgv feed attaches to its first record.
package status

import (
	"context"
	"sync"
	"time"

	"github.com/okian/glucofeed/internal/domain/model"
	"github.com/okian/glucofeed/pkg/logger"
	"github.com/okian/glucofeed/pkg/metrics"
)

// Tracker is a concurrency-safe holder for the current status line.
type Tracker struct {
	mu     sync.RWMutex
	line   model.StatusLine
	now    func() time.Time
	logger logger.Logger
}

// Option applies a configuration option to the Tracker.
type Option func(*Tracker)

// WithClock overrides the clock used when a status arrives without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithLogger sets a custom logger for the tracker.
func WithLogger(l logger.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTracker creates an empty tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = logger.Named("status")
	}
	return t
}

// Set replaces the status line. A non-positive timestamp is replaced by the
// current time. An empty text clears the status.
func (t *Tracker) Set(ctx context.Context, text string, timestamp int64) model.StatusLine {
	if text != "" && timestamp <= 0 {
		timestamp = t.now().UnixMilli()
	}
	if text == "" {
		timestamp = 0
	}
	line := model.StatusLine{Text: text, Timestamp: timestamp}

	t.mu.Lock()
	t.line = line
	t.mu.Unlock()

	metrics.RecordStatusUpdate()
	t.logger.Debug(ctx, "status line updated", logger.String("status", text), logger.Int64("timestamp", timestamp))
	return line
}

// Current returns the last status line set.
func (t *Tracker) Current() model.StatusLine {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.line
}
