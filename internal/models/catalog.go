package models

// Category is a storefront product category
type Category struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	ParentID  string `json:"parent_id,omitempty"`
	SortOrder int    `json:"sort_order"`
}

// DashboardStats is the admin back-office summary
type DashboardStats struct {
	TotalProducts    int     `json:"total_products"`
	TotalOrders      int     `json:"total_orders"`
	PendingOrders    int     `json:"pending_orders"`
	ActiveFlashSales int     `json:"active_flash_sales"`
	Revenue          float64 `json:"revenue"`
}
