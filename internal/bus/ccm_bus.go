// Package bus is the in-process event bus wiring sync completions to the
// report cache. Delivery is synchronous and follows registration order.
package bus

import (
	"context"
	"fmt"
	"sync"

	"ccm_server/core/port/out"
	"ccm_server/pkg/logger"
)

// Subscriber handles one published event. A returned error is logged and
// never stops delivery to the remaining subscribers.
type Subscriber func(ctx context.Context, payload any) error

type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]Subscriber
}

var _ out.EventPublisher = (*Bus)(nil)

func New() *Bus {
	return &Bus{subscribers: make(map[string][]Subscriber)}
}

func (b *Bus) Subscribe(eventType string, subscriber Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], subscriber)
}

func (b *Bus) Publish(ctx context.Context, eventType string, payload any) {
	b.mu.RLock()
	subscribers := b.subscribers[eventType]
	b.mu.RUnlock()

	for i, subscriber := range subscribers {
		if err := b.deliver(ctx, subscriber, payload); err != nil {
			logger.Error("[Bus.Publish] subscriber_failed event=%s subscriber=%d: %v", eventType, i, err)
		}
	}
}

func (b *Bus) deliver(ctx context.Context, subscriber Subscriber, payload any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return subscriber(ctx, payload)
}
