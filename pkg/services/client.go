// Package services is a typed HTTP client for the auth, catalog, order,
// payment and GraphQL gateway services.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethpandaops/gatewaybench/pkg/config"
	"github.com/sirupsen/logrus"
)

// maxErrorBody caps how much of an error response ends up in a CallError.
const maxErrorBody = 256

// Client talks to the services. Every call runs under its own timeout.
type Client struct {
	log      logrus.FieldLogger
	http     *http.Client
	urls     map[string]string
	timeouts config.TimeoutsConfig
}

// NewClient creates a client for the services configured in cfg. A nil
// httpClient uses a dedicated client with default transport settings.
func NewClient(log logrus.FieldLogger, cfg *config.BenchmarkConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	urls := make(map[string]string, len(cfg.Services))
	for name := range cfg.Services {
		urls[name] = cfg.ServiceURL(name)
	}

	return &Client{
		log:      log.WithField("component", "services"),
		http:     httpClient,
		urls:     urls,
		timeouts: cfg.Timeouts,
	}
}

// Health checks a service's /health endpoint.
func (c *Client) Health(ctx context.Context, service string) (*HealthResponse, error) {
	var out HealthResponse

	if _, err := c.do(ctx, call{
		service: service,
		method:  http.MethodGet,
		path:    "/health",
		timeout: c.timeouts.Health,
	}, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// RegisterUser creates a user in the auth service.
func (c *Client) RegisterUser(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	var out RegisterResponse

	if _, err := c.do(ctx, call{
		service: config.ServiceAuth,
		method:  http.MethodPost,
		path:    "/api/v1/auth/register",
		body:    req,
		timeout: c.timeouts.Create,
	}, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// ListProducts returns one page of the catalog.
func (c *Client) ListProducts(ctx context.Context, page, pageSize int) (*ProductPage, error) {
	var out ProductPage

	if _, err := c.do(ctx, call{
		service: config.ServiceCatalog,
		method:  http.MethodGet,
		path:    "/api/v1/catalog/items",
		query: url.Values{
			"page":      {strconv.Itoa(page)},
			"page_size": {strconv.Itoa(pageSize)},
		},
		timeout: c.timeouts.Lookup,
	}, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// CreateProduct adds an item to the catalog.
func (c *Client) CreateProduct(ctx context.Context, req CreateProductRequest) (*Product, error) {
	var out Product

	if _, err := c.do(ctx, call{
		service: config.ServiceCatalog,
		method:  http.MethodPost,
		path:    "/api/v1/catalog/items",
		body:    req,
		timeout: c.timeouts.Create,
	}, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// GetProduct fetches a single catalog item. The returned size is the
// number of response body bytes received.
func (c *Client) GetProduct(ctx context.Context, id string) (*Product, int64, error) {
	var out Product

	n, err := c.do(ctx, call{
		service: config.ServiceCatalog,
		method:  http.MethodGet,
		path:    "/api/v1/catalog/items/" + url.PathEscape(id),
		timeout: c.timeouts.Lookup,
	}, &out)
	if err != nil {
		return nil, 0, err
	}

	return &out, n, nil
}

// CreateOrder places an order.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	var out Order

	if _, err := c.do(ctx, call{
		service: config.ServiceOrder,
		method:  http.MethodPost,
		path:    "/api/v1/orders",
		body:    req,
		timeout: c.timeouts.Create,
	}, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// GetUserOrders lists up to limit orders of a user. The returned size is
// the number of response body bytes received.
func (c *Client) GetUserOrders(ctx context.Context, userID string, limit int) (*UserOrders, int64, error) {
	var out UserOrders

	n, err := c.do(ctx, call{
		service: config.ServiceOrder,
		method:  http.MethodGet,
		path:    "/api/v1/orders/user/" + url.PathEscape(userID),
		query:   url.Values{"limit": {strconv.Itoa(limit)}},
		timeout: c.timeouts.Lookup,
	}, &out)
	if err != nil {
		return nil, 0, err
	}

	return &out, n, nil
}

// QueryUserOrders runs the aggregated userOrders query against the gateway.
// The returned size is the number of response body bytes received.
func (c *Client) QueryUserOrders(ctx context.Context, userID string) ([]GraphQLOrder, int64, error) {
	var out userOrdersResponse

	endpoint := "POST /graphql"

	n, err := c.do(ctx, call{
		service: config.ServiceGraphQL,
		method:  http.MethodPost,
		path:    "/graphql",
		body: GraphQLRequest{
			Query:     UserOrdersQuery,
			Variables: map[string]any{"userId": userID},
		},
		timeout: c.timeouts.Aggregated,
	}, &out)
	if err != nil {
		return nil, 0, err
	}

	if out.Data == nil {
		msgs := make([]string, 0, len(out.Errors))
		for _, e := range out.Errors {
			msgs = append(msgs, e.Message)
		}

		if len(msgs) == 0 {
			msgs = append(msgs, "response has no data")
		}

		return nil, 0, &CallError{
			Service:  config.ServiceGraphQL,
			Endpoint: endpoint,
			Kind:     KindGraphQL,
			Err:      errors.New(strings.Join(msgs, "; ")),
		}
	}

	if len(out.Errors) > 0 {
		c.log.WithField("errors", len(out.Errors)).Warn("GraphQL response contained partial errors")
	}

	return out.Data.UserOrders, n, nil
}

type call struct {
	service string
	method  string
	path    string
	query   url.Values
	body    any
	timeout time.Duration
}

// do performs a call and decodes a 2xx JSON body into out. It returns the
// number of body bytes received.
func (c *Client) do(ctx context.Context, cl call, out any) (int64, error) {
	endpoint := cl.method + " " + cl.path

	fail := func(kind Kind, status int, err error) error {
		return &CallError{
			Service:    cl.service,
			Endpoint:   endpoint,
			Kind:       kind,
			StatusCode: status,
			Err:        err,
		}
	}

	base, ok := c.urls[cl.service]
	if !ok || base == "" {
		return 0, fail(KindUnreachable, 0, fmt.Errorf("no URL configured"))
	}

	target := base + cl.path
	if len(cl.query) > 0 {
		target += "?" + cl.query.Encode()
	}

	var body io.Reader

	if cl.body != nil {
		data, err := json.Marshal(cl.body)
		if err != nil {
			return 0, fmt.Errorf("encoding %s request: %w", endpoint, err)
		}

		body = bytes.NewReader(data)
	}

	if cl.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, cl.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, target, body)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fail(classify(err), 0, err)
	}

	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fail(classify(err), resp.StatusCode, fmt.Errorf("reading response: %w", err))
	}

	c.log.WithFields(logrus.Fields{
		"service":  cl.service,
		"endpoint": endpoint,
		"status":   resp.StatusCode,
		"bytes":    len(data),
		"duration": time.Since(start),
	}).Debug("Service call completed")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fail(KindStatus, resp.StatusCode, errors.New(truncate(strings.TrimSpace(string(data)), maxErrorBody)))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return 0, fail(KindDecode, resp.StatusCode, err)
		}
	}

	return int64(len(data)), nil
}

func classify(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	return KindUnreachable
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}
