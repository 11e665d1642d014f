package events

import (
	"context"
	"encoding/json"
	"sync"
)

// LocalBus is an in-process Publisher/Subscriber for single-instance runs
// without redis. Handlers run synchronously on the publishing goroutine.
type LocalBus struct {
	mu       sync.RWMutex
	handlers map[string][]func([]byte)
}

func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: make(map[string][]func([]byte))}
}

func (b *LocalBus) Publish(ctx context.Context, stream string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.PublishRaw(ctx, stream, data)
}

func (b *LocalBus) PublishRaw(_ context.Context, stream string, data []byte) error {
	b.mu.RLock()
	hs := append([]func([]byte){}, b.handlers[stream]...)
	b.mu.RUnlock()

	for _, h := range hs {
		h(data)
	}
	return nil
}

func (b *LocalBus) Subscribe(ctx context.Context, stream string, handler func(Event)) error {
	return b.SubscribeRaw(ctx, stream, func(data []byte) {
		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			return
		}
		handler(event)
	})
}

func (b *LocalBus) SubscribeRaw(_ context.Context, stream string, handler func([]byte)) error {
	b.mu.Lock()
	b.handlers[stream] = append(b.handlers[stream], handler)
	b.mu.Unlock()
	return nil
}
