package catalog

import (
	"encoding/json"
	"fmt"

	"storefront-sync/internal/models"
)

type categoryRow struct {
	ID        *string `json:"id"`
	Name      *string `json:"name"`
	Slug      *string `json:"slug"`
	ParentID  *string `json:"parent_id"`
	SortOrder *int    `json:"sort_order"`
}

// NormalizeCategory decodes a category row. id and name are required.
func NormalizeCategory(raw json.RawMessage) (models.Category, error) {
	var row categoryRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return models.Category{}, fmt.Errorf("%w: %v", models.ErrMalformedResponse, err)
	}
	if row.ID == nil || *row.ID == "" {
		return models.Category{}, fmt.Errorf("%w: category without id", models.ErrMalformedResponse)
	}
	if row.Name == nil {
		return models.Category{}, fmt.Errorf("%w: category %s without name", models.ErrMalformedResponse, *row.ID)
	}

	category := models.Category{ID: *row.ID, Name: *row.Name}
	if row.Slug != nil {
		category.Slug = *row.Slug
	}
	if row.ParentID != nil {
		category.ParentID = *row.ParentID
	}
	if row.SortOrder != nil {
		category.SortOrder = *row.SortOrder
	}
	return category, nil
}

// NormalizeDashboardStats decodes the dashboard RPC result. The RPC may
// answer with a single object or a one-row set.
func NormalizeDashboardStats(raw json.RawMessage) (models.DashboardStats, error) {
	var stats models.DashboardStats
	if err := json.Unmarshal(raw, &stats); err == nil {
		return stats, nil
	}

	var rows []models.DashboardStats
	if err := json.Unmarshal(raw, &rows); err != nil {
		return models.DashboardStats{}, fmt.Errorf("%w: %v", models.ErrMalformedResponse, err)
	}
	if len(rows) != 1 {
		return models.DashboardStats{}, fmt.Errorf("%w: expected one dashboard row, got %d", models.ErrMalformedResponse, len(rows))
	}
	return rows[0], nil
}
