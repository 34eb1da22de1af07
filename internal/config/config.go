package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"storefront-sync/internal/models"
)

var validate = validator.New()

// Config represents the main configuration structure
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Cache         CacheConfig         `yaml:"cache"`
	Resources     ResourcesConfig     `yaml:"resources"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Push          PushConfig          `yaml:"push"`
	Datastore     DatastoreConfig     `yaml:"datastore"`
}

// ServerConfig configures the HTTP surface
type ServerConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

// CacheConfig configures the in-process keyed cache
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	SizeMB       int           `yaml:"size_mb" validate:"gte=0"`
	LifeWindow   time.Duration `yaml:"life_window" validate:"gt=0"`
	MaxEntrySize int           `yaml:"max_entry_size" validate:"gt=0"`
}

// ResourceTTL holds soft and hard TTLs of one SWR resource
type ResourceTTL struct {
	SoftTTL time.Duration `yaml:"soft_ttl" validate:"gt=0"`
	HardTTL time.Duration `yaml:"hard_ttl" validate:"gtefield=SoftTTL"`
}

// TTL converts the thresholds into a cache TTL
func (r ResourceTTL) TTL() models.TTL {
	return models.NewTTL(r.SoftTTL, r.HardTTL)
}

// ResourcesConfig holds per-resource freshness tunables
type ResourcesConfig struct {
	Categories     ResourceTTL `yaml:"categories"`
	DashboardStats ResourceTTL `yaml:"dashboard_stats"`
	Queries        ResourceTTL `yaml:"queries"`
	// QueryableTables lists the tables open to ad-hoc queries
	QueryableTables []string `yaml:"queryable_tables" validate:"dive,required"`
}

// NotificationsConfig configures the notification feed and surfaces
type NotificationsConfig struct {
	LatestTTL      time.Duration `yaml:"latest_ttl" validate:"gt=0"`
	UnreadTTL      time.Duration `yaml:"unread_ttl" validate:"gt=0"`
	SeedLimit      int           `yaml:"seed_limit" validate:"gt=0"`
	PageLimit      int           `yaml:"page_limit" validate:"gt=0"`
	PollInterval   time.Duration `yaml:"poll_interval" validate:"gt=0"`
	PollTTL        time.Duration `yaml:"poll_ttl" validate:"gt=0,ltfield=PollInterval"`
	MaxVisible     int           `yaml:"max_visible" validate:"gt=0"`
	DismissAfter   time.Duration `yaml:"dismiss_after" validate:"gt=0"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gt=0"`
}

// ConnectionConfig holds Redis connection settings
type ConnectionConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout" validate:"gt=0"`
	ReadTimeout    time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout   time.Duration `yaml:"write_timeout" validate:"gt=0"`
	PoolSize       int           `yaml:"pool_size" validate:"gt=0"`
}

// PushConfig configures the optional realtime transport
type PushConfig struct {
	Enabled    bool             `yaml:"enabled"`
	Schema     string           `yaml:"schema" validate:"required"`
	Table      string           `yaml:"table" validate:"required"`
	Connection ConnectionConfig `yaml:"connection"`
}

// Topic returns the insert topic the feed subscribes to
func (p PushConfig) Topic() models.Topic {
	return models.Topic{Schema: p.Schema, Table: p.Table, Event: models.InsertEventType}
}

// DatastoreConfig configures the managed backend client
type DatastoreConfig struct {
	URL                string        `yaml:"url" validate:"required,url"`
	Timeout            time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxRPS             int           `yaml:"max_rps" validate:"gte=0"`
	NotificationsTable string        `yaml:"notifications_table" validate:"required"`
	ReadReceiptsTable  string        `yaml:"read_receipts_table" validate:"required"`
	CategoriesTable    string        `yaml:"categories_table" validate:"required"`
}

// LoadConfig loads configuration from file path
func LoadConfig(configPath string, logger *zap.Logger) (*Config, error) {
	logger.Info("Loading configuration", zap.String("path", configPath))

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var config Config
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to decode YAML config: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the configuration is usable
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Entries must outlive their hard TTL in the byte store
	for name, r := range map[string]ResourceTTL{
		"categories":      c.Resources.Categories,
		"dashboard_stats": c.Resources.DashboardStats,
		"queries":         c.Resources.Queries,
	} {
		if r.HardTTL > c.Cache.LifeWindow {
			return fmt.Errorf("resources.%s.hard_ttl (%s) exceeds cache.life_window (%s)", name, r.HardTTL, c.Cache.LifeWindow)
		}
	}

	// Notification tables are per-user and never open to ad-hoc queries
	for _, table := range c.Resources.QueryableTables {
		if table == c.Datastore.NotificationsTable || table == c.Datastore.ReadReceiptsTable {
			return fmt.Errorf("resources.queryable_tables must not include %q", table)
		}
	}
	return nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}

	if c.Cache.SizeMB == 0 {
		c.Cache.SizeMB = 64
	}
	if c.Cache.LifeWindow == 0 {
		c.Cache.LifeWindow = 10 * time.Minute
	}
	if c.Cache.MaxEntrySize == 0 {
		c.Cache.MaxEntrySize = 1024 * 1024
	}

	c.Resources.Categories.applyDefaults(60*time.Second, 300*time.Second)
	c.Resources.DashboardStats.applyDefaults(30*time.Second, 120*time.Second)
	c.Resources.Queries.applyDefaults(60*time.Second, 300*time.Second)

	n := &c.Notifications
	if n.LatestTTL == 0 {
		n.LatestTTL = 30 * time.Second
	}
	if n.UnreadTTL == 0 {
		n.UnreadTTL = 20 * time.Second
	}
	if n.SeedLimit == 0 {
		n.SeedLimit = 5
	}
	if n.PageLimit == 0 {
		n.PageLimit = 50
	}
	if n.PollInterval == 0 {
		n.PollInterval = 15 * time.Second
	}
	if n.PollTTL == 0 {
		n.PollTTL = 5 * time.Second
	}
	if n.MaxVisible == 0 {
		n.MaxVisible = 6
	}
	if n.DismissAfter == 0 {
		n.DismissAfter = 8 * time.Second
	}
	if n.RequestTimeout == 0 {
		n.RequestTimeout = 10 * time.Second
	}

	if c.Push.Schema == "" {
		c.Push.Schema = "public"
	}
	if c.Push.Table == "" {
		c.Push.Table = "notifications"
	}
	conn := &c.Push.Connection
	if conn.ConnectTimeout == 0 {
		conn.ConnectTimeout = time.Second
	}
	if conn.ReadTimeout == 0 {
		conn.ReadTimeout = time.Second
	}
	if conn.WriteTimeout == 0 {
		conn.WriteTimeout = time.Second
	}
	if conn.PoolSize == 0 {
		conn.PoolSize = 10
	}

	if c.Datastore.Timeout == 0 {
		c.Datastore.Timeout = 10 * time.Second
	}
	if c.Datastore.NotificationsTable == "" {
		c.Datastore.NotificationsTable = "notifications"
	}
	if c.Datastore.ReadReceiptsTable == "" {
		c.Datastore.ReadReceiptsTable = "notification_reads"
	}
	if c.Datastore.CategoriesTable == "" {
		c.Datastore.CategoriesTable = "categories"
	}
	if c.Resources.QueryableTables == nil {
		c.Resources.QueryableTables = []string{"products", c.Datastore.CategoriesTable}
	}
}

func (r *ResourceTTL) applyDefaults(soft, hard time.Duration) {
	if r.SoftTTL == 0 {
		r.SoftTTL = soft
	}
	if r.HardTTL == 0 {
		r.HardTTL = hard
	}
}
