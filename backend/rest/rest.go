// Package rest provides a backend.Collection implementation for a JSON list endpoint.
package rest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"todoq/backend"
)

const (
	// DefaultTimeout bounds a single request/response exchange
	DefaultTimeout = 30 * time.Second

	tracerName = "todoq/backend/rest"
)

// Config holds connection settings for one collection endpoint
type Config struct {
	Endpoint   string        // e.g. http://localhost:4000/api/items
	Timeout    time.Duration // zero means DefaultTimeout
	HTTPClient *http.Client  // Override for testing
}

// Client implements backend.Collection over HTTP
type Client struct {
	endpoint string
	client   *http.Client
	tracer   trace.Tracer
}

// New creates a new REST client
func New(cfg Config) (*Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return nil, fmt.Errorf("collection endpoint is required")
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return nil, fmt.Errorf("collection endpoint must be an http(s) URL: %s", endpoint)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = createHTTPClient(cfg.Timeout)
	}

	return &Client{
		endpoint: endpoint,
		client:   client,
		tracer:   otel.Tracer(tracerName),
	}, nil
}

// createHTTPClient creates an HTTP client with the configured timeout
func createHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
	}
}

// Endpoint returns the collection URL this client talks to
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Close releases idle connections
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	c.client.CloseIdleConnections()
	return nil
}

// =============================================================================
// Wire Format
// =============================================================================

// itemDTO is the JSON shape of an item. Older deployments of the API key items
// by "_id" instead of "id"; both are accepted on decode.
type itemDTO struct {
	ID       int64  `json:"id,omitempty"`
	LegacyID int64  `json:"_id,omitempty"`
	Title    string `json:"title"`
}

func (d itemDTO) toItem() backend.Item {
	id := d.ID
	if id == 0 {
		id = d.LegacyID
	}
	return backend.Item{ID: backend.ItemID(id), Title: d.Title}
}

type patchDTO struct {
	Title *string `json:"title,omitempty"`
}

// =============================================================================
// Request Plumbing
// =============================================================================

// doRequest performs a single request. There are no retries: a failed exchange
// is reported to the caller, which decides what it means.
func (c *Client) doRequest(ctx context.Context, method, url string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := sonic.ConfigStd.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.client.Do(req)
}

// startSpan opens a span for one collection operation
func (c *Client) startSpan(ctx context.Context, op, method string, id backend.ItemID) (context.Context, trace.Span) {
	ctx, span := c.tracer.Start(ctx, "items."+op, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(attribute.String("http.method", method))
	if id != backend.NoID {
		span.SetAttributes(attribute.Int64("todoq.item.id", int64(id)))
	}
	return ctx, span
}

// finishSpan records the outcome on the span and ends it
func finishSpan(span trace.Span, status int, err error) {
	if status != 0 {
		span.SetAttributes(attribute.Int("http.status_code", status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// readBody reads the whole response body, returning nil for an empty one
func readBody(resp *http.Response) ([]byte, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	return data, nil
}

func (c *Client) itemURL(id backend.ItemID) string {
	return c.endpoint + "/" + id.String()
}

// =============================================================================
// Collection Operations
// =============================================================================

// FetchAll reads the whole list in server order
func (c *Client) FetchAll(ctx context.Context) (items backend.ItemList, err error) {
	ctx, span := c.startSpan(ctx, "list", http.MethodGet, backend.NoID)
	status := 0
	defer func() { finishSpan(span, status, err) }()

	resp, err := c.doRequest(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, &backend.TransportFailure{Op: "list", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	status = resp.StatusCode

	if !isSuccess(resp.StatusCode) {
		return nil, &backend.TransportFailure{Op: "list", Status: resp.StatusCode}
	}

	data, err := readBody(resp)
	if err != nil {
		return nil, &backend.TransportFailure{Op: "list", Status: resp.StatusCode, Err: err}
	}

	var dtos []itemDTO
	if data != nil {
		if err := sonic.ConfigStd.Unmarshal(data, &dtos); err != nil {
			return nil, &backend.TransportFailure{Op: "list", Status: resp.StatusCode, Err: fmt.Errorf("decode list: %w", err)}
		}
	}

	items = make(backend.ItemList, 0, len(dtos))
	for _, d := range dtos {
		items = append(items, d.toItem())
	}
	span.SetAttributes(attribute.Int("todoq.items.count", len(items)))
	return items, nil
}

// Create posts a new item. If the server answers 2xx with an empty body the
// returned item carries the sent title and no id.
func (c *Client) Create(ctx context.Context, title string) (item *backend.Item, err error) {
	ctx, span := c.startSpan(ctx, "create", http.MethodPost, backend.NoID)
	status := 0
	defer func() { finishSpan(span, status, err) }()

	resp, err := c.doRequest(ctx, http.MethodPost, c.endpoint, map[string]string{"title": title})
	if err != nil {
		return nil, &backend.TransportFailure{Op: "create", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	status = resp.StatusCode

	if !isSuccess(resp.StatusCode) {
		return nil, &backend.TransportFailure{Op: "create", Status: resp.StatusCode}
	}

	data, err := readBody(resp)
	if err != nil {
		return nil, &backend.TransportFailure{Op: "create", Status: resp.StatusCode, Err: err}
	}
	if data == nil {
		return &backend.Item{Title: title}, nil
	}

	var created itemDTO
	if err := sonic.ConfigStd.Unmarshal(data, &created); err != nil {
		return nil, &backend.TransportFailure{Op: "create", Status: resp.StatusCode, Err: fmt.Errorf("decode item: %w", err)}
	}

	result := created.toItem()
	if result.Title == "" {
		result.Title = title
	}
	if result.ID != backend.NoID {
		span.SetAttributes(attribute.Int64("todoq.item.id", int64(result.ID)))
	}
	return &result, nil
}

// Update patches the given fields of an existing item
func (c *Client) Update(ctx context.Context, id backend.ItemID, fields backend.Patch) (item *backend.Item, err error) {
	ctx, span := c.startSpan(ctx, "update", http.MethodPatch, id)
	status := 0
	defer func() { finishSpan(span, status, err) }()

	resp, err := c.doRequest(ctx, http.MethodPatch, c.itemURL(id), patchDTO{Title: fields.Title})
	if err != nil {
		return nil, &backend.TransportFailure{Op: "update", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	status = resp.StatusCode

	if !isSuccess(resp.StatusCode) {
		return nil, &backend.TransportFailure{Op: "update", Status: resp.StatusCode}
	}

	data, err := readBody(resp)
	if err != nil {
		return nil, &backend.TransportFailure{Op: "update", Status: resp.StatusCode, Err: err}
	}

	result := backend.Item{ID: id}
	if fields.Title != nil {
		result.Title = *fields.Title
	}
	if data == nil {
		return &result, nil
	}

	var updated itemDTO
	if err := sonic.ConfigStd.Unmarshal(data, &updated); err != nil {
		return nil, &backend.TransportFailure{Op: "update", Status: resp.StatusCode, Err: fmt.Errorf("decode item: %w", err)}
	}
	if u := updated.toItem(); u.Title != "" {
		result.Title = u.Title
	}
	return &result, nil
}

// Remove deletes an item
func (c *Client) Remove(ctx context.Context, id backend.ItemID) (err error) {
	ctx, span := c.startSpan(ctx, "remove", http.MethodDelete, id)
	status := 0
	defer func() { finishSpan(span, status, err) }()

	resp, err := c.doRequest(ctx, http.MethodDelete, c.itemURL(id), nil)
	if err != nil {
		return &backend.TransportFailure{Op: "remove", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	status = resp.StatusCode

	if !isSuccess(resp.StatusCode) {
		return &backend.TransportFailure{Op: "remove", Status: resp.StatusCode}
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Verify interface compliance at compile time
var _ backend.Collection = (*Client)(nil)
