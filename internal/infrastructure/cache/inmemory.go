package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shardbase/backend/internal/domain/access"
	"github.com/shardbase/backend/internal/domain/shard"
	"github.com/shardbase/backend/internal/domain/shared"
)

// InMemoryShardCache is a process-local shard.Cache for tests and
// single-node deployments. Entries expire lazily on read.
type InMemoryShardCache struct {
	mu      sync.RWMutex
	entries map[string]inmemShardEntry
}

type inmemShardEntry struct {
	entry     shard.CacheEntry
	expiresAt time.Time
}

func NewInMemoryShardCache() *InMemoryShardCache {
	return &InMemoryShardCache{entries: make(map[string]inmemShardEntry)}
}

func (c *InMemoryShardCache) Get(_ context.Context, key string) (*shard.CacheEntry, error) {
	c.mu.RLock()
	item, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !item.expiresAt.IsZero() && time.Now().After(item.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, nil
	}
	entry := item.entry
	return &entry, nil
}

func (c *InMemoryShardCache) Set(_ context.Context, key string, entry shard.CacheEntry, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = inmemShardEntry{entry: entry, expiresAt: expiresAt}
	c.mu.Unlock()
	return nil
}

func (c *InMemoryShardCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *InMemoryShardCache) DeleteByPrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
	return nil
}

// InMemoryDecisionCache is a process-local access.DecisionCache.
type InMemoryDecisionCache struct {
	mu        sync.RWMutex
	decisions map[string]inmemDecisionEntry
}

type inmemDecisionEntry struct {
	decision  access.Decision
	expiresAt time.Time
}

func NewInMemoryDecisionCache() *InMemoryDecisionCache {
	return &InMemoryDecisionCache{decisions: make(map[string]inmemDecisionEntry)}
}

func (c *InMemoryDecisionCache) Get(_ context.Context, key string) (*access.Decision, error) {
	c.mu.RLock()
	item, ok := c.decisions[key]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !item.expiresAt.IsZero() && time.Now().After(item.expiresAt) {
		c.mu.Lock()
		delete(c.decisions, key)
		c.mu.Unlock()
		return nil, nil
	}
	decision := item.decision
	return &decision, nil
}

func (c *InMemoryDecisionCache) Set(_ context.Context, key string, decision access.Decision, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.decisions[key] = inmemDecisionEntry{decision: decision, expiresAt: expiresAt}
	c.mu.Unlock()
	return nil
}

func (c *InMemoryDecisionCache) DeleteByPrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	for key := range c.decisions {
		if strings.HasPrefix(key, prefix) {
			delete(c.decisions, key)
		}
	}
	c.mu.Unlock()
	return nil
}

// InMemoryInvalidationBus delivers invalidations to in-process subscribers.
// Publish is synchronous so tests can assert on delivery without sleeping.
type InMemoryInvalidationBus struct {
	mu          sync.RWMutex
	subscribers []inmemSubscription
}

type inmemSubscription struct {
	prefix  string
	handler func(key string)
}

func NewInMemoryInvalidationBus() *InMemoryInvalidationBus {
	return &InMemoryInvalidationBus{}
}

func (b *InMemoryInvalidationBus) PublishInvalidation(_ context.Context, key string) error {
	b.mu.RLock()
	subs := make([]inmemSubscription, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	for _, sub := range subs {
		if sub.prefix == "" || strings.HasPrefix(key, sub.prefix) {
			sub.handler(key)
		}
	}
	return nil
}

func (b *InMemoryInvalidationBus) SubscribeInvalidations(ctx context.Context, prefix string, handler func(key string)) error {
	b.mu.Lock()
	b.subscribers = append(b.subscribers, inmemSubscription{prefix: prefix, handler: handler})
	b.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func (b *InMemoryInvalidationBus) Close() error {
	return nil
}

var (
	_ shard.Cache            = (*InMemoryShardCache)(nil)
	_ access.DecisionCache   = (*InMemoryDecisionCache)(nil)
	_ shared.InvalidationBus = (*InMemoryInvalidationBus)(nil)
)
