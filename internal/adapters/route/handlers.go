package route

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/glucofeed/internal/domain/commands"
	"github.com/okian/glucofeed/internal/domain/model"
	"github.com/okian/glucofeed/internal/domain/types"
	"github.com/okian/glucofeed/pkg/logger"
)

// ErrInvalidValue marks a route value that could not be parsed.
var ErrInvalidValue = errors.New("invalid route value")

// ActivityRecorder persists samples pushed through the steps and heart routes.
type ActivityRecorder interface {
	RecordSteps(ctx context.Context, s model.Steps) error
	RecordHeart(ctx context.Context, h model.HeartRate) error
}

// Enqueuer accepts tasker commands without blocking.
type Enqueuer interface {
	Enqueue(ctx context.Context, c model.TaskerCommand) bool
}

// FeedRequester serves the sgv feed.
type FeedRequester interface {
	Request(ctx context.Context, rawQuery string) types.Result
}

// Handlers builds the side-channel handlers.
type Handlers struct {
	activity ActivityRecorder
	tasker   Enqueuer
	now      func() time.Time
	logger   logger.Logger
}

// HandlersOption applies a configuration option to Handlers.
type HandlersOption func(*Handlers)

// WithClock overrides the clock used to timestamp samples and commands.
func WithClock(now func() time.Time) HandlersOption {
	return func(h *Handlers) {
		if now != nil {
			h.now = now
		}
	}
}

// WithLogger sets a custom logger for the handlers.
func WithLogger(l logger.Logger) HandlersOption {
	return func(h *Handlers) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandlers creates the side-channel handlers.
func NewHandlers(activity ActivityRecorder, tasker Enqueuer, opts ...HandlersOption) *Handlers {
	h := &Handlers{activity: activity, tasker: tasker, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.Named("route")
	}
	return h
}

// RegisterAll binds the steps, heart and tasker routes on f.
func (h *Handlers) RegisterAll(f *Finder) {
	f.Register(commands.StepsRoute, "steps", h.Steps)
	f.Register(commands.HeartRoute, "heart", h.Heart)
	f.Register(commands.TaskerRoute, "tasker", h.Tasker)
}

// RegisterFeed binds the sgv.json route on f.
func RegisterFeed(f *Finder, feed FeedRequester) {
	f.RegisterQuery("sgv.json", "sgv", func(ctx context.Context, _, rawQuery string) types.Result {
		return feed.Request(ctx, rawQuery)
	})
}

// Steps handles "steps/set/<count>".
func (h *Handlers) Steps(ctx context.Context, rest, _ string) types.Result {
	count, err := parseInt(rest, 0)
	if err != nil {
		h.logger.Debug(ctx, "rejected steps value", logger.String("value", rest), logger.Error(err))
		return codeResult(http.StatusBadRequest)
	}
	s := model.Steps{Timestamp: h.now().UnixMilli(), Count: count}
	if err := h.activity.RecordSteps(ctx, s); err != nil {
		h.logger.Error(ctx, "failed to record steps", logger.Error(err))
		return codeResult(http.StatusInternalServerError)
	}
	return codeResult(http.StatusOK)
}

// Heart handles "heart/set/<bpm>/<accuracy>".
func (h *Handlers) Heart(ctx context.Context, rest, _ string) types.Result {
	bpmText, accText, ok := strings.Cut(rest, "/")
	if !ok {
		h.logger.Debug(ctx, "heart route without accuracy", logger.String("value", rest))
		return codeResult(http.StatusBadRequest)
	}
	bpm, err := parseInt(bpmText, 1)
	if err != nil {
		h.logger.Debug(ctx, "rejected heart value", logger.String("value", bpmText), logger.Error(err))
		return codeResult(http.StatusBadRequest)
	}
	acc, err := strconv.Atoi(accText)
	if err != nil {
		h.logger.Debug(ctx, "rejected heart accuracy", logger.String("value", accText), logger.Error(err))
		return codeResult(http.StatusBadRequest)
	}

	sample := model.HeartRate{Timestamp: h.now().UnixMilli(), BPM: bpm, Accuracy: acc}
	if err := h.activity.RecordHeart(ctx, sample); err != nil {
		h.logger.Error(ctx, "failed to record heart rate", logger.Error(err))
		return codeResult(http.StatusInternalServerError)
	}
	return codeResult(http.StatusOK)
}

// Tasker handles "tasker/<word>".
func (h *Handlers) Tasker(ctx context.Context, rest, _ string) types.Result {
	if rest == "" || strings.Contains(rest, "/") {
		h.logger.Debug(ctx, "rejected tasker command", logger.String("value", rest))
		return codeResult(http.StatusBadRequest)
	}
	c := model.TaskerCommand{
		ID:       uuid.NewString(),
		Word:     rest,
		Received: h.now().UnixMilli(),
	}
	if !h.tasker.Enqueue(ctx, c) {
		h.logger.Warn(ctx, "tasker queue rejected command", logger.String("command", rest))
		return codeResult(http.StatusServiceUnavailable)
	}
	h.logger.Debug(ctx, "tasker command queued", logger.String("id", c.ID), logger.String("command", rest))
	return codeResult(http.StatusOK)
}

func parseInt(s string, minimum int) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < minimum {
		return 0, fmt.Errorf("%w: %q", ErrInvalidValue, s)
	}
	return n, nil
}
