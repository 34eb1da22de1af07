package interfaces

import (
	"context"
	"encoding/json"

	"storefront-sync/internal/models"
)

//go:generate mockgen -package=mock -source=datastore.go -destination=mock/datastore.go

// QueryClient is the query capability of the managed backend
type QueryClient interface {
	// Select returns raw rows matching the query
	Select(ctx context.Context, query models.Query) ([]json.RawMessage, error)

	// Count returns the number of rows matching the query in a single round trip
	Count(ctx context.Context, query models.Query) (int, error)

	// RPC invokes a remote procedure and returns its raw result
	RPC(ctx context.Context, fn string, args map[string]interface{}) (json.RawMessage, error)
}
