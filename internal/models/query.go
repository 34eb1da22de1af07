package models

// FilterOp is a supported row filter operator
type FilterOp string

const (
	FilterEq FilterOp = "eq"
	FilterIs FilterOp = "is"
	FilterIn FilterOp = "in"
)

// Filter restricts a query on one column
type Filter struct {
	Column string   `json:"column"`
	Op     FilterOp `json:"op"`
	Values []string `json:"values"`
}

// Eq builds an equality filter
func Eq(column, value string) Filter {
	return Filter{Column: column, Op: FilterEq, Values: []string{value}}
}

// IsNull builds an "is null" filter
func IsNull(column string) Filter {
	return Filter{Column: column, Op: FilterIs, Values: []string{"null"}}
}

// In builds a set membership filter
func In(column string, values ...string) Filter {
	return Filter{Column: column, Op: FilterIn, Values: values}
}

// Order sorts query results
type Order struct {
	Column     string `json:"column"`
	Descending bool   `json:"descending"`
}

// Query is a select against one table of the managed backend
type Query struct {
	Table   string   `json:"table"`
	Columns []string `json:"columns,omitempty"`
	Filters []Filter `json:"filters,omitempty"`
	Order   *Order   `json:"order,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}
