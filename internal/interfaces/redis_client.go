package interfaces

import (
	"context"

	"github.com/go-redis/redis/v8"
)

//go:generate mockgen -source=redis_client.go -destination=mock/redis_client.go -package=mock

// RedisClient defines the Redis operations used by the push transport
type RedisClient interface {
	// Publish sends a message on a channel
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd

	// Subscribe opens a pub/sub connection for the given channels
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub

	// Ping tests connectivity
	Ping(ctx context.Context) *redis.StatusCmd

	// Close closes the client connection
	Close() error
}
