package datastore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"storefront-sync/internal/config"
	"storefront-sync/internal/interfaces"
	"storefront-sync/internal/models"
)

// Ensure Client implements interfaces.QueryClient
var _ interfaces.QueryClient = (*Client)(nil)

// APIError is a non-2xx answer of the backend
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("datastore returned status %d: %s", e.StatusCode, e.Message)
}

// Client talks to a PostgREST style REST endpoint
type Client struct {
	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient creates a client for the REST root in cfg.URL
func NewClient(cfg *config.DatastoreConfig, apiKey string, logger *zap.Logger) (*Client, error) {
	baseURL, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse datastore URL: %w", err)
	}

	// zero MaxRPS leaves the backend unthrottled
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.MaxRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.MaxRPS), cfg.MaxRPS)
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		logger:     logger,
	}, nil
}

// Select returns the raw rows matching q
func (c *Client) Select(ctx context.Context, q models.Query) ([]json.RawMessage, error) {
	req, err := c.newRequest(ctx, http.MethodGet, q.Table, queryValues(q), nil)
	if err != nil {
		return nil, err
	}

	body, _, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("%w: select %s: %v", models.ErrMalformedResponse, q.Table, err)
	}
	return rows, nil
}

// Count returns the number of rows matching q without transferring them
func (c *Client) Count(ctx context.Context, q models.Query) (int, error) {
	values := queryValues(models.Query{Table: q.Table, Filters: q.Filters})
	values.Set("select", "*")

	req, err := c.newRequest(ctx, http.MethodHead, q.Table, values, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Prefer", "count=exact")

	_, header, err := c.do(req)
	if err != nil {
		return 0, err
	}
	return parseContentRange(header.Get("Content-Range"))
}

// RPC calls the remote procedure fn with args
func (c *Client) RPC(ctx context.Context, fn string, args map[string]interface{}) (json.RawMessage, error) {
	if args == nil {
		args = map[string]interface{}{}
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rpc arguments: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "rpc/"+fn, nil, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	body, _, err := c.do(req)
	if err != nil {
		return nil, err
	}

	// void procedures answer with an empty body
	if len(bytes.TrimSpace(body)) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: rpc %s returned invalid JSON", models.ErrMalformedResponse, fn)
	}
	return json.RawMessage(body), nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, values url.Values, body io.Reader) (*http.Request, error) {
	u := *c.baseURL
	u.Path = u.Path + "/" + path
	if values != nil {
		u.RawQuery = values.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

func (c *Client) do(req *http.Request) ([]byte, http.Header, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, nil, fmt.Errorf("%s %s: rate limit wait: %w", req.Method, req.URL.Path, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s %s failed: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
		c.logger.Debug("Datastore request failed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode))
		return nil, nil, apiErr
	}

	return body, resp.Header, nil
}

// queryValues renders q into PostgREST query parameters
func queryValues(q models.Query) url.Values {
	values := url.Values{}

	if len(q.Columns) > 0 {
		values.Set("select", strings.Join(q.Columns, ","))
	}
	for _, f := range q.Filters {
		values.Add(f.Column, filterValue(f))
	}
	if q.Order != nil {
		direction := "asc"
		if q.Order.Descending {
			direction = "desc"
		}
		values.Set("order", q.Order.Column+"."+direction)
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	return values
}

func filterValue(f models.Filter) string {
	switch f.Op {
	case models.FilterIn:
		quoted := make([]string, len(f.Values))
		for i, v := range f.Values {
			quoted[i] = `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
		}
		return "in.(" + strings.Join(quoted, ",") + ")"
	default:
		value := ""
		if len(f.Values) > 0 {
			value = f.Values[0]
		}
		return string(f.Op) + "." + value
	}
}

// parseContentRange reads the total from "0-24/573" or "*/573"
func parseContentRange(header string) (int, error) {
	_, total, found := strings.Cut(header, "/")
	if !found || total == "" || total == "*" {
		return 0, fmt.Errorf("%w: content-range %q has no total", models.ErrMalformedResponse, header)
	}

	count, err := strconv.Atoi(total)
	if err != nil {
		return 0, fmt.Errorf("%w: content-range %q: %v", models.ErrMalformedResponse, header, err)
	}
	return count, nil
}

func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	if len(body) > 0 {
		return string(body)
	}
	return "no body"
}

// IsAPIError reports whether err carries a backend status of code
func IsAPIError(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}
