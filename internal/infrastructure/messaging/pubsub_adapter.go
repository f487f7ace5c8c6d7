package messaging

import (
	"context"
	"sync"

	"github.com/cubescore/cubescore-backend/internal/infrastructure/persistence/redis"
)

// ══════════════════════════════════════════════════════════════════════════════
// REDIS CLIENT ADAPTER
// Мост между redis.Cache и интерфейсом RedisClient шины событий.
// ══════════════════════════════════════════════════════════════════════════════

// CachePubSubAdapter adapts a redis.Cache to the RedisClient interface
// expected by RedisEventBus.
type CachePubSubAdapter struct {
	cache *redis.Cache

	mu   sync.Mutex
	subs []func()
}

// NewCachePubSubAdapter creates a new adapter over an existing cache client.
func NewCachePubSubAdapter(cache *redis.Cache) *CachePubSubAdapter {
	return &CachePubSubAdapter{cache: cache}
}

// Publish publishes a message to a channel.
func (a *CachePubSubAdapter) Publish(ctx context.Context, channel string, message interface{}) error {
	return a.cache.Publish(ctx, channel, message)
}

// Subscribe subscribes to channels and pumps messages into a RedisMessage channel.
// The subscription lives until the context is cancelled or Close is called.
func (a *CachePubSubAdapter) Subscribe(ctx context.Context, channels ...string) (<-chan RedisMessage, error) {
	pubsub := a.cache.Subscribe(ctx, channels...)

	// Receive once so a dead connection surfaces here, not in the pump loop.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	out := make(chan RedisMessage)
	done := make(chan struct{})

	a.mu.Lock()
	a.subs = append(a.subs, func() {
		close(done)
		pubsub.Close()
	})
	a.mu.Unlock()

	go func() {
		defer close(out)
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case <-done:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				out <- RedisMessage{Channel: msg.Channel, Payload: msg.Payload}
			}
		}
	}()

	return out, nil
}

// Close terminates all active subscriptions.
// The underlying cache client stays open: its lifecycle belongs to the caller.
func (a *CachePubSubAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, stop := range a.subs {
		stop()
	}
	a.subs = nil
	return nil
}
