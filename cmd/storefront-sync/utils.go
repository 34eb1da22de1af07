package main

import (
	"os"
	"strings"

	"go.uber.org/zap"
)

// secret describes where a credential may come from
type secret struct {
	name     string // environment variable
	fileEnv  string // environment variable holding the file path
	file     string // default file path
	fallback string
}

var (
	redisURLSecret = secret{
		name:     "REDIS_URL",
		fileEnv:  "SYNC_REDIS_URL_FILE",
		file:     "/app/.redis-url",
		fallback: "redis://redis:6379",
	}
	datastoreKeySecret = secret{
		name:    "DATASTORE_API_KEY",
		fileEnv: "SYNC_DATASTORE_API_KEY_FILE",
		file:    "/app/.datastore-api-key",
	}
	jwtSecret = secret{
		name:    "JWT_SECRET",
		fileEnv: "SYNC_JWT_SECRET_FILE",
		file:    "/app/.jwt-secret",
	}
)

// resolveSecret returns a credential with the following priority:
// 1. environment variable
// 2. file content (path configurable through fileEnv)
// 3. default value
func resolveSecret(s secret, logger *zap.Logger) string {
	if value := os.Getenv(s.name); value != "" {
		logger.Debug("Using secret from environment variable", zap.String("name", s.name))
		return value
	}

	path := os.Getenv(s.fileEnv)
	if path == "" {
		path = s.file
	}

	if content, err := os.ReadFile(path); err == nil {
		value := strings.TrimSpace(string(content))
		if len(value) > 0 {
			logger.Debug("Using secret from file", zap.String("name", s.name), zap.String("file", path))
			return value
		}
	} else {
		logger.Debug("Secret file not found or empty", zap.String("name", s.name), zap.String("file", path))
	}

	logger.Debug("Using default secret value", zap.String("name", s.name))
	return s.fallback
}
