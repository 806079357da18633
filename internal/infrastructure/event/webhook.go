package event

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/shardbase/backend/internal/domain/shared"
)

// webhookPayload is the envelope posted to downstream consumers
type webhookPayload struct {
	EventID       string      `json:"event_id"`
	EventType     string      `json:"event_type"`
	OccurredAt    time.Time   `json:"occurred_at"`
	AggregateID   string      `json:"aggregate_id"`
	AggregateType string      `json:"aggregate_type"`
	TenantID      string      `json:"tenant_id"`
	Event         interface{} `json:"event"`
}

// WebhookBridge forwards domain events to an external HTTP endpoint.
// It runs behind the async dispatcher, so retries and slow consumers
// never touch the request path that produced the event.
type WebhookBridge struct {
	client     *resty.Client
	path       string
	eventTypes []string
	logger     *zap.Logger
}

// WebhookOption configures a WebhookBridge
type WebhookOption func(*WebhookBridge)

// WithWebhookEventTypes restricts the bridge to specific event types.
// Without it the bridge receives every event.
func WithWebhookEventTypes(types ...string) WebhookOption {
	return func(b *WebhookBridge) {
		b.eventTypes = types
	}
}

// WithWebhookRetries overrides the per-delivery retry count
func WithWebhookRetries(retries int) WebhookOption {
	return func(b *WebhookBridge) {
		if retries >= 0 {
			b.client.SetRetryCount(retries)
		}
	}
}

// WithWebhookLogger sets the logger
func WithWebhookLogger(logger *zap.Logger) WebhookOption {
	return func(b *WebhookBridge) {
		b.logger = logger
	}
}

// NewWebhookBridge creates a bridge posting events to baseURL+path
func NewWebhookBridge(baseURL, path string, timeout time.Duration, opts ...WebhookOption) *WebhookBridge {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		SetHeader("Content-Type", "application/json")

	b := &WebhookBridge{
		client: client,
		path:   path,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Handle posts the event to the configured endpoint
func (b *WebhookBridge) Handle(ctx context.Context, evt shared.DomainEvent) error {
	payload := webhookPayload{
		EventID:       evt.EventID().String(),
		EventType:     evt.EventType(),
		OccurredAt:    evt.OccurredAt(),
		AggregateID:   evt.AggregateID().String(),
		AggregateType: evt.AggregateType(),
		TenantID:      evt.TenantID().String(),
		Event:         evt,
	}

	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(b.path)
	if err != nil {
		return fmt.Errorf("failed to deliver webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook endpoint returned %d", resp.StatusCode())
	}

	b.logger.Debug("webhook delivered",
		zap.String("event_type", evt.EventType()),
		zap.String("event_id", evt.EventID().String()),
	)
	return nil
}

// EventTypes returns the event types this bridge subscribes to
func (b *WebhookBridge) EventTypes() []string {
	return b.eventTypes
}

// Ensure WebhookBridge implements EventHandler
var _ shared.EventHandler = (*WebhookBridge)(nil)
