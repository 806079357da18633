package shared

import "context"

// InvalidationPublisher broadcasts cache invalidation keys to every
// process sharing the cache. Publish must be synchronous: a writer calls
// it before acknowledging its write as committed, which is what bounds
// reader staleness to values cached strictly before the write began.
type InvalidationPublisher interface {
	PublishInvalidation(ctx context.Context, key string) error
}

// InvalidationBus is the full pub/sub contract for cache invalidation.
// The transport (Redis pub/sub, in-memory fan-out) is interchangeable;
// the publish-before-ack ordering is the correctness contract.
type InvalidationBus interface {
	InvalidationPublisher
	// SubscribeInvalidations delivers every published key with the given
	// prefix to the handler. It blocks until ctx is cancelled and is meant
	// to run in its own goroutine for the life of the process.
	SubscribeInvalidations(ctx context.Context, prefix string, handler func(key string)) error
	// Close releases the bus's resources
	Close() error
}
