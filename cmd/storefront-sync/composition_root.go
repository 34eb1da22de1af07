package main

import (
	"fmt"
	"os"

	"github.com/benbjohnson/clock"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"storefront-sync/internal/cache"
	"storefront-sync/internal/cache/l1"
	"storefront-sync/internal/cache/noop"
	"storefront-sync/internal/catalog"
	"storefront-sync/internal/coalescer"
	"storefront-sync/internal/config"
	"storefront-sync/internal/datastore"
	"storefront-sync/internal/httpserver"
	"storefront-sync/internal/identity"
	"storefront-sync/internal/interfaces"
	"storefront-sync/internal/notifications"
	"storefront-sync/internal/push"
	"storefront-sync/internal/swr"
)

// CompositionRoot holds all application dependencies. The process-wide
// services (cache, coalescer, push channel) are created once here and
// injected everywhere else.
type CompositionRoot struct {
	Config *config.Config
	Logger *zap.Logger
	Clock  clock.Clock

	// Cache components
	Store   interfaces.Cache
	Cache   *cache.KeyedCache
	Flights *coalescer.Coalescer

	// Backend and transport
	Datastore   *datastore.Client
	RedisClient interfaces.RedisClient
	Push        *push.Channel

	// Services
	Catalog       *catalog.Catalog
	Notifications *notifications.Service
	Verifier      *identity.Verifier
	HTTPServer    *httpserver.Server
}

// NewCompositionRoot creates and wires all application dependencies.
//
// Initialization order:
// 1. Logger
// 2. Configuration
// 3. Cache components (byte store, keyed cache, coalescer)
// 4. Backend client and optional push transport
// 5. Services (catalog, notifications, identity)
// 6. HTTP Server
func NewCompositionRoot() (*CompositionRoot, error) {
	root := &CompositionRoot{Clock: clock.New()}

	if err := root.initLogger(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := root.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := root.initCacheComponents(); err != nil {
		return nil, fmt.Errorf("failed to initialize cache components: %w", err)
	}

	if err := root.initDatastore(); err != nil {
		return nil, fmt.Errorf("failed to initialize datastore client: %w", err)
	}

	root.initPush()

	if err := root.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	root.initHTTPServer()

	return root, nil
}

// initLogger initializes the application logger
func (r *CompositionRoot) initLogger() error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	r.Logger = logger
	redis.SetLogger(NewRedisLogger(logger))
	return nil
}

// loadConfig loads the application configuration
func (r *CompositionRoot) loadConfig() error {
	configPath := os.Getenv("SYNC_CONFIG_FILE")
	if configPath == "" {
		configPath = "/app/storefront_sync.yaml"
	}

	cfg, err := config.LoadConfig(configPath, r.Logger)
	if err != nil {
		return err
	}

	r.Config = cfg
	return nil
}

// initCacheComponents creates the byte store and the shared keyed cache
func (r *CompositionRoot) initCacheComponents() error {
	if r.Config.Cache.Enabled {
		store, err := l1.NewBigCache(&r.Config.Cache, r.Logger)
		if err != nil {
			return err
		}
		r.Store = store
		r.Logger.Info("BigCache initialized", zap.Int("size_mb", r.Config.Cache.SizeMB))
	} else {
		r.Store = noop.NewNoOpCache()
		r.Logger.Info("Cache disabled, every read goes upstream")
	}

	r.Cache = cache.New(r.Store, r.Clock, r.Logger)
	r.Flights = coalescer.New()
	return nil
}

// initDatastore creates the managed backend client
func (r *CompositionRoot) initDatastore() error {
	apiKey := resolveSecret(datastoreKeySecret, r.Logger)
	if apiKey == "" {
		r.Logger.Warn("No datastore API key configured, requests are anonymous")
	}

	client, err := datastore.NewClient(&r.Config.Datastore, apiKey, r.Logger)
	if err != nil {
		return err
	}
	r.Datastore = client
	return nil
}

// initPush connects the realtime transport. Without it surfaces poll.
func (r *CompositionRoot) initPush() {
	if !r.Config.Push.Enabled {
		r.Logger.Info("Push disabled, notification surfaces will poll")
		return
	}

	redisURL := resolveSecret(redisURLSecret, r.Logger)
	client, err := push.NewRedisClient(&r.Config.Push, redisURL, r.Logger)
	if err != nil {
		r.Logger.Warn("Failed to connect push transport, falling back to polling", zap.Error(err))
		return
	}

	r.RedisClient = client
	r.Push = push.NewChannel(client, r.Logger)
	r.Logger.Info("Push transport initialized", zap.String("channel", push.ChannelName(r.Config.Push.Topic())))
}

// initServices initializes application services
func (r *CompositionRoot) initServices() error {
	deps := swr.Deps{Cache: r.Cache, Flights: r.Flights, Logger: r.Logger}

	cat, err := catalog.New(r.Datastore, deps, &r.Config.Resources, r.Config.Datastore.CategoriesTable, r.Logger)
	if err != nil {
		return err
	}
	r.Catalog = cat

	repository := notifications.NewRepository(r.Datastore, &r.Config.Datastore)
	r.Notifications = notifications.NewService(repository, r.Cache, r.Flights, &r.Config.Notifications, r.Logger)

	secret := resolveSecret(jwtSecret, r.Logger)
	if secret == "" {
		r.Logger.Warn("No JWT secret configured, every caller is a guest")
	}
	r.Verifier = identity.NewVerifier(secret, r.Logger)
	return nil
}

// initHTTPServer initializes the HTTP server
func (r *CompositionRoot) initHTTPServer() {
	surfaces := notifications.SurfaceDeps{
		Service: r.Notifications,
		Topic:   r.Config.Push.Topic(),
		Clock:   r.Clock,
		Config:  &r.Config.Notifications,
		Logger:  r.Logger,
	}
	// a nil *push.Channel must stay a nil interface
	if r.Push != nil {
		surfaces.Push = r.Push
	}

	r.HTTPServer = httpserver.NewServer(httpserver.Deps{
		Cache:         r.Cache,
		Catalog:       r.Catalog,
		Notifications: r.Notifications,
		Surfaces:      surfaces,
		Verifier:      r.Verifier,
	}, r.Logger)
}

// Cleanup performs cleanup of all resources
func (r *CompositionRoot) Cleanup() error {
	var errors []error

	if r.RedisClient != nil {
		if err := r.RedisClient.Close(); err != nil {
			errors = append(errors, fmt.Errorf("failed to close Redis client: %w", err))
		}
	}

	if bigCache, ok := r.Store.(*l1.BigCache); ok {
		if err := bigCache.Close(); err != nil {
			errors = append(errors, fmt.Errorf("failed to close cache: %w", err))
		}
	}

	if r.Logger != nil {
		_ = r.Logger.Sync()
	}

	if len(errors) > 0 {
		return errors[0]
	}
	return nil
}
