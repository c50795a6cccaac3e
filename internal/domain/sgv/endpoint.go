// Package sgv emulates the Nightscout entries feed (sgv.json).
//
// The feed always returns the latest FeedSize readings newest first and
// ignores every query parameter except the side-channel commands steps,
// heart and tasker, whose result codes are echoed once in the output.
package sgv

import (
	"context"
	"net/http"

	"github.com/okian/glucofeed/internal/domain/commands"
	"github.com/okian/glucofeed/internal/domain/model"
	"github.com/okian/glucofeed/internal/domain/types"
	"github.com/okian/glucofeed/pkg/logger"
	"github.com/okian/glucofeed/pkg/metrics"
)

// FeedSize is the fixed number of readings the feed returns.
const FeedSize = 24

// ReadingStore supplies the most recent readings, newest first. A nil slice
// with a nil error means no collection is available.
type ReadingStore interface {
	Latest(ctx context.Context, n int) ([]model.Reading, error)
}

// StatusSource supplies the current external status line.
type StatusSource interface {
	Current() model.StatusLine
}

// Endpoint serves sgv.json requests.
type Endpoint struct {
	store     ReadingStore
	status    StatusSource
	commander commands.Commander
	assembler *Assembler
	logger    logger.Logger

	device     string
	formatDate DateFormatter
}

// Option applies a configuration option to the Endpoint.
type Option func(*Endpoint)

// WithDevice sets the collector hardware name reported on every record.
func WithDevice(device string) Option {
	return func(e *Endpoint) {
		if device != "" {
			e.device = device
		}
	}
}

// WithDateFormatter overrides how dateString and sysTime are rendered.
func WithDateFormatter(f DateFormatter) Option {
	return func(e *Endpoint) {
		if f != nil {
			e.formatDate = f
		}
	}
}

// WithLogger sets a custom logger for the endpoint.
func WithLogger(l logger.Logger) Option {
	return func(e *Endpoint) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEndpoint wires the feed to its collaborators.
func NewEndpoint(store ReadingStore, status StatusSource, commander commands.Commander, opts ...Option) *Endpoint {
	e := &Endpoint{
		store:      store,
		status:     status,
		commander:  commander,
		device:     "xDrip",
		formatDate: NightscoutFormatter(nil),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.Named("sgv")
	}
	e.assembler = NewAssembler(e.device, e.formatDate, e.logger)
	return e
}

// Request handles one feed request. Side-channel commands run before any
// reading is read. The result is always 200 with a JSON array body.
func (e *Endpoint) Request(ctx context.Context, rawQuery string) types.Result {
	q := types.ParseQuery(rawQuery)
	results := Dispatch(ctx, q, e.commander, e.logger)

	readings, err := e.store.Latest(ctx, FeedSize)
	if err != nil {
		e.logger.Warn(ctx, "readings store unavailable", logger.Error(err))
		readings = nil
	}
	if readings == nil {
		metrics.RecordFeedStoreUnavailable()
	}
	if len(readings) > FeedSize {
		readings = readings[:FeedSize]
	}

	aux := Aux{Results: results}
	if e.status != nil {
		aux.Status = e.status.Current()
	}

	body := e.assembler.Assemble(ctx, readings, aux)
	metrics.RecordFeedRequest(len(readings))
	return types.NewResult(http.StatusOK, body)
}
