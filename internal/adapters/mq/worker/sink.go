package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/glucofeed/pkg/logger"
)

const defaultWebhookTimeout = 2 * time.Second

// ErrDeliveryRejected is returned when the webhook answers with a non-2xx status.
var ErrDeliveryRejected = errors.New("delivery rejected")

// LogSink records commands in the log. It is used when no webhook is configured.
type LogSink struct {
	logger logger.Logger
}

// NewLogSink creates a sink writing to l, or to the "tasker" logger when l is nil.
func NewLogSink(l logger.Logger) *LogSink {
	if l == nil {
		l = logger.Named("tasker")
	}
	return &LogSink{logger: l}
}

// Deliver logs the command.
func (s *LogSink) Deliver(ctx context.Context, c Command) error {
	s.logger.Info(ctx, "tasker command",
		logger.String("id", c.ID),
		logger.String("command", c.Word),
		logger.Int64("received", c.Received),
	)
	return nil
}

// WebhookSink posts each command as JSON to a fixed URL.
type WebhookSink struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

// NewWebhookSink creates a sink posting to url.
func NewWebhookSink(url string, opts ...WebhookOption) *WebhookSink {
	s := &WebhookSink{
		url:     url,
		client:  http.DefaultClient,
		timeout: defaultWebhookTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deliver posts c and expects a 2xx answer.
func (s *WebhookSink) Deliver(ctx context.Context, c Command) error {
	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode command %s: %w", c.ID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post command %s: %w", c.ID, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: %s answered %d", ErrDeliveryRejected, s.url, resp.StatusCode)
	}
	return nil
}
