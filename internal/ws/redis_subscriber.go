package ws

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisSubscriber implements BusSubscriber over Redis pub/sub.
type RedisSubscriber struct {
	client *redis.Client
}

// NewRedisSubscriber creates a bus subscriber.
func NewRedisSubscriber(client *redis.Client) *RedisSubscriber {
	return &RedisSubscriber{client: client}
}

// Subscribe opens one pub/sub subscription covering all channels and
// adapts it onto a BusMessage stream.
func (s *RedisSubscriber) Subscribe(ctx context.Context, channels ...string) (<-chan BusMessage, func() error, error) {
	pubsub := s.client.Subscribe(ctx, channels...)

	// Force the subscription to be established before returning so a dead
	// broker fails startup loudly.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}

	out := make(chan BusMessage, 256)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			select {
			case out <- BusMessage{Channel: msg.Channel, Payload: []byte(msg.Payload)}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, pubsub.Close, nil
}
