package service

import (
	"context"

	"habitsync/internal/event"
)

// Publisher receives every Change Event the gateway emits. Implementations
// must not block the caller on slow consumers.
type Publisher interface {
	Publish(ctx context.Context, e event.Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, e event.Event)

func (f PublisherFunc) Publish(ctx context.Context, e event.Event) { f(ctx, e) }

type multiPublisher []Publisher

func (m multiPublisher) Publish(ctx context.Context, e event.Event) {
	for _, p := range m {
		p.Publish(ctx, e)
	}
}

// Publishers fans one event out to each non-nil publisher in order.
func Publishers(pubs ...Publisher) Publisher {
	out := make(multiPublisher, 0, len(pubs))
	for _, p := range pubs {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}
