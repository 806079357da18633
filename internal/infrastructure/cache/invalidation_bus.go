package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shardbase/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultInvalidationChannel = "shardbase:cache:invalidation"

// InvalidationMessage is the wire format broadcast on the bus
type InvalidationMessage struct {
	Key       string `json:"key"`
	Timestamp int64  `json:"timestamp"`
}

// RedisInvalidationBus implements shared.InvalidationBus over Redis
// Pub/Sub. Every API process subscribes at startup; a publish therefore
// converges all in-process caches within one broadcast round-trip. A
// process that missed a broadcast (restart) is bounded by entry TTL.
type RedisInvalidationBus struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger

	mu       sync.Mutex
	cancelFn context.CancelFunc
}

// RedisInvalidationBusOption is a functional option for configuring the bus
type RedisInvalidationBusOption func(*RedisInvalidationBus)

// WithBusChannel sets the Pub/Sub channel name
func WithBusChannel(channel string) RedisInvalidationBusOption {
	return func(b *RedisInvalidationBus) {
		b.channel = channel
	}
}

// WithBusLogger sets the logger for the bus
func WithBusLogger(logger *zap.Logger) RedisInvalidationBusOption {
	return func(b *RedisInvalidationBus) {
		b.logger = logger
	}
}

// NewRedisInvalidationBus creates a bus over an existing Redis client.
// The caller retains ownership of the client.
func NewRedisInvalidationBus(client *redis.Client, opts ...RedisInvalidationBusOption) *RedisInvalidationBus {
	bus := &RedisInvalidationBus{
		client:  client,
		channel: defaultInvalidationChannel,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(bus)
	}
	return bus
}

// PublishInvalidation broadcasts a key and waits for the broker's ack.
// Writers call this before acknowledging their write as committed.
func (b *RedisInvalidationBus) PublishInvalidation(ctx context.Context, key string) error {
	msg := InvalidationMessage{Key: key, Timestamp: time.Now().UnixNano()}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal invalidation message: %w", err)
	}

	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		b.logger.Error("failed to publish invalidation",
			zap.String("key", key),
			zap.String("channel", b.channel),
			zap.Error(err))
		return fmt.Errorf("failed to publish invalidation: %w", err)
	}

	b.logger.Debug("published invalidation",
		zap.String("key", key),
		zap.String("channel", b.channel))
	return nil
}

// SubscribeInvalidations listens for broadcast keys with the given prefix
// and invokes the handler for each. Blocks until ctx is cancelled; meant
// to run in its own goroutine for the life of the process.
func (b *RedisInvalidationBus) SubscribeInvalidations(ctx context.Context, prefix string, handler func(key string)) error {
	subCtx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.cancelFn = cancel
	b.mu.Unlock()

	pubsub := b.client.Subscribe(subCtx, b.channel)
	defer pubsub.Close()

	// Wait for subscription confirmation before reporting readiness
	if _, err := pubsub.Receive(subCtx); err != nil {
		return fmt.Errorf("failed to subscribe to channel: %w", err)
	}

	b.logger.Info("subscribed to invalidation channel",
		zap.String("channel", b.channel),
		zap.String("prefix", prefix))

	ch := pubsub.Channel()
	for {
		select {
		case <-subCtx.Done():
			return subCtx.Err()
		case msg, ok := <-ch:
			if !ok {
				b.logger.Warn("invalidation channel closed")
				return nil
			}

			var im InvalidationMessage
			if err := json.Unmarshal([]byte(msg.Payload), &im); err != nil {
				b.logger.Error("failed to unmarshal invalidation message",
					zap.String("payload", msg.Payload),
					zap.Error(err))
				continue
			}
			if !strings.HasPrefix(im.Key, prefix) {
				continue
			}

			// Handler runs detached so a slow consumer cannot stall the
			// subscription loop.
			go func(key string) {
				defer func() {
					if r := recover(); r != nil {
						b.logger.Error("panic in invalidation handler",
							zap.Any("panic", r))
					}
				}()
				handler(key)
			}(im.Key)
		}
	}
}

// Close stops the subscription
func (b *RedisInvalidationBus) Close() error {
	b.mu.Lock()
	cancel := b.cancelFn
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// Ensure RedisInvalidationBus implements the bus contract
var _ shared.InvalidationBus = (*RedisInvalidationBus)(nil)
