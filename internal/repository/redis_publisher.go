package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	drepo "MatchPulse/internal/domain/repository"
)

// RedisPublisher implements Publisher over Redis pub/sub. The same client
// is shared by all in-flight match tasks within a cycle.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisClient builds and pings a Redis client. Failure here is
// process-fatal at startup.
func NewRedisClient(addr, password string, db, poolSize int) (*redis.Client, error) {
	if poolSize <= 0 {
		poolSize = 10
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: poolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// NewRedisPublisher creates a channel publisher.
func NewRedisPublisher(client *redis.Client) drepo.Publisher {
	return &RedisPublisher{client: client}
}

// Publish marshals the payload to JSON and publishes it on the channel.
func (p *RedisPublisher) Publish(ctx context.Context, channel string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// Close closes the underlying client.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
