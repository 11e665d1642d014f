package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RedisPublisher struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisPublisher(client *redis.Client, log *zap.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, log: log}
}

func (p *RedisPublisher) Publish(ctx context.Context, stream string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.PublishRaw(ctx, stream, data)
}

func (p *RedisPublisher) PublishRaw(ctx context.Context, stream string, data []byte) error {
	return p.client.Publish(ctx, stream, string(data)).Err()
}

type RedisSubscriber struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisSubscriber(client *redis.Client, log *zap.Logger) *RedisSubscriber {
	return &RedisSubscriber{client: client, log: log}
}

func (s *RedisSubscriber) Subscribe(ctx context.Context, stream string, handler func(Event)) error {
	return s.SubscribeRaw(ctx, stream, func(data []byte) {
		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			s.log.Error("failed to unmarshal event", zap.String("stream", stream), zap.Error(err))
			return
		}
		handler(event)
	})
}

func (s *RedisSubscriber) SubscribeRaw(ctx context.Context, stream string, handler func([]byte)) error {
	pubsub := s.client.Subscribe(ctx, stream)
	// wait for the subscription to be confirmed so nothing published after return is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	ch := pubsub.Channel()

	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(msg.Payload))
			}
		}
	}()

	return nil
}
