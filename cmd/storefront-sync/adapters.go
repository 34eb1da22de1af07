package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// RedisLogger adapts zap.Logger to the go-redis internal logger
type RedisLogger struct {
	logger *zap.Logger
}

// NewRedisLogger creates a new RedisLogger adapter
func NewRedisLogger(logger *zap.Logger) *RedisLogger {
	return &RedisLogger{logger: logger.Named("redis")}
}

// Printf logs a go-redis message at warn level
func (r *RedisLogger) Printf(ctx context.Context, format string, v ...interface{}) {
	r.logger.Warn(fmt.Sprintf(format, v...))
}
