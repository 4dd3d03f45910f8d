package out

import "context"

// EventPublisher delivers domain events to registered subscribers.
// Delivery is synchronous and in registration order; a failing subscriber
// never prevents the remaining ones from running.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any)
}
