package push

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"storefront-sync/internal/config"
	"storefront-sync/internal/interfaces"
)

// Ensure RedisClient implements interfaces.RedisClient
var _ interfaces.RedisClient = (*RedisClient)(nil)

// RedisClient wraps redis.Client for the realtime transport
type RedisClient struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisClient connects to redisURL and verifies the connection
func NewRedisClient(pushCfg *config.PushConfig, redisURL string, logger *zap.Logger) (interfaces.RedisClient, error) {
	opts, err := redisOptions(pushCfg, redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), pushCfg.Connection.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close() // Clean up the client
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}

	logger.Info("Connected to Redis",
		zap.String("address", opts.Addr),
		zap.Duration("connect_timeout", pushCfg.Connection.ConnectTimeout),
		zap.Int("pool_size", pushCfg.Connection.PoolSize))

	return &RedisClient{
		client: client,
		logger: logger,
	}, nil
}

func redisOptions(pushCfg *config.PushConfig, redisURL string) (*redis.Options, error) {
	parsedURL, err := url.Parse(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if parsedURL.Hostname() == "" {
		return nil, fmt.Errorf("redis URL %q has no host", redisURL)
	}

	port := parsedURL.Port()
	if port == "" {
		port = "6379" // Default Redis port
	}

	opts := &redis.Options{
		Addr:         fmt.Sprintf("%s:%s", parsedURL.Hostname(), port),
		DialTimeout:  pushCfg.Connection.ConnectTimeout,
		ReadTimeout:  pushCfg.Connection.ReadTimeout,
		WriteTimeout: pushCfg.Connection.WriteTimeout,
		PoolSize:     pushCfg.Connection.PoolSize,
	}

	if parsedURL.User != nil {
		opts.Username = parsedURL.User.Username()
		if password, ok := parsedURL.User.Password(); ok {
			opts.Password = password
		}
	}

	// Database number from the URL path
	if len(parsedURL.Path) > 1 {
		if db, err := strconv.Atoi(parsedURL.Path[1:]); err == nil {
			opts.DB = db
		}
	}

	return opts, nil
}

// Publish sends a message on a channel
func (r *RedisClient) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	return r.client.Publish(ctx, channel, message)
}

// Subscribe opens a pub/sub connection for the given channels
func (r *RedisClient) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return r.client.Subscribe(ctx, channels...)
}

// Ping tests connectivity
func (r *RedisClient) Ping(ctx context.Context) *redis.StatusCmd {
	return r.client.Ping(ctx)
}

// Close closes the client connection
func (r *RedisClient) Close() error {
	return r.client.Close()
}
