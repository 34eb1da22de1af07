package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"storefront-sync/internal/cache"
	"storefront-sync/internal/config"
	"storefront-sync/internal/interfaces"
	"storefront-sync/internal/models"
	"storefront-sync/internal/swr"
)

const (
	categoriesKey     = "categories:all"
	dashboardStatsKey = "dashboard:stats"
	queryResource     = "query"

	dashboardStatsRPC = "get_dashboard_stats"
)

// ErrTableNotQueryable is returned for ad-hoc queries outside the
// configured allowlist
var ErrTableNotQueryable = errors.New("table is not queryable")

// Catalog owns the reference-data resources of the storefront
type Catalog struct {
	client          interfaces.QueryClient
	deps            swr.Deps
	keys            *cache.KeyBuilder
	cfg             *config.ResourcesConfig
	categoriesTable string
	logger          *zap.Logger

	categories     *swr.Resource[[]models.Category]
	dashboardStats *swr.Resource[models.DashboardStats]
}

// New creates the catalog and its shared resources
func New(client interfaces.QueryClient, deps swr.Deps, cfg *config.ResourcesConfig, categoriesTable string, logger *zap.Logger) (*Catalog, error) {
	c := &Catalog{
		client:          client,
		deps:            deps,
		keys:            cache.NewKeyBuilder(),
		cfg:             cfg,
		categoriesTable: categoriesTable,
		logger:          logger,
	}

	var err error
	c.categories, err = swr.New(swr.Config[[]models.Category]{
		Name:  "categories",
		Key:   categoriesKey,
		TTL:   cfg.Categories.TTL(),
		Fetch: c.fetchCategories,
	}, deps)
	if err != nil {
		return nil, fmt.Errorf("failed to create categories resource: %w", err)
	}

	c.dashboardStats, err = swr.New(swr.Config[models.DashboardStats]{
		Name:  "dashboard",
		Key:   dashboardStatsKey,
		TTL:   cfg.DashboardStats.TTL(),
		Fetch: c.fetchDashboardStats,
	}, deps)
	if err != nil {
		return nil, fmt.Errorf("failed to create dashboard stats resource: %w", err)
	}

	return c, nil
}

// Categories returns the shared categories resource
func (c *Catalog) Categories() *swr.Resource[[]models.Category] {
	return c.categories
}

// DashboardStats returns the shared admin dashboard resource
func (c *Catalog) DashboardStats() *swr.Resource[models.DashboardStats] {
	return c.dashboardStats
}

// Query returns a resource for an arbitrary table query. Resources for the
// same query share one cache entry.
func (c *Catalog) Query(q models.Query) (*swr.Resource[[]json.RawMessage], error) {
	if q.Table == "" {
		return nil, fmt.Errorf("query table cannot be empty")
	}
	if !slices.Contains(c.cfg.QueryableTables, q.Table) {
		return nil, fmt.Errorf("%w: %s", ErrTableNotQueryable, q.Table)
	}

	key, err := c.keys.BuildForParams(c.keys.Build(queryResource, q.Table), q)
	if err != nil {
		return nil, err
	}

	return swr.New(swr.Config[[]json.RawMessage]{
		Name: queryResource,
		Key:  key,
		TTL:  c.cfg.Queries.TTL(),
		Fetch: func(ctx context.Context) ([]json.RawMessage, error) {
			return c.client.Select(ctx, q)
		},
	}, c.deps)
}

// InvalidateCategories drops the cached categories after a write
func (c *Catalog) InvalidateCategories() {
	c.deps.Cache.Delete(categoriesKey)
	c.logger.Debug("Invalidated categories cache")
}

// InvalidateDashboardStats drops the cached dashboard summary
func (c *Catalog) InvalidateDashboardStats() {
	c.deps.Cache.Delete(dashboardStatsKey)
}

// InvalidateQueries drops every cached query against table
func (c *Catalog) InvalidateQueries(table string) int {
	removed := c.deps.Cache.DeletePrefix(c.keys.Build(queryResource, table) + ":")
	c.logger.Debug("Invalidated query cache", zap.String("table", table), zap.Int("removed", removed))
	return removed
}

func (c *Catalog) fetchCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := c.client.Select(ctx, models.Query{
		Table:   c.categoriesTable,
		Columns: []string{"id", "name", "slug", "parent_id", "sort_order"},
		Order:   &models.Order{Column: "sort_order"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch categories: %w", err)
	}

	categories := make([]models.Category, 0, len(rows))
	for i, row := range rows {
		category, err := NormalizeCategory(row)
		if err != nil {
			return nil, fmt.Errorf("category row %d: %w", i, err)
		}
		categories = append(categories, category)
	}
	return categories, nil
}

func (c *Catalog) fetchDashboardStats(ctx context.Context) (models.DashboardStats, error) {
	raw, err := c.client.RPC(ctx, dashboardStatsRPC, nil)
	if err != nil {
		return models.DashboardStats{}, fmt.Errorf("failed to fetch dashboard stats: %w", err)
	}
	return NormalizeDashboardStats(raw)
}
