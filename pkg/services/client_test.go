package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethpandaops/gatewaybench/pkg/config"
	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

func newTestClient(t *testing.T, services map[string]string) *Client {
	t.Helper()

	cfg := &config.BenchmarkConfig{
		Services: services,
		Timeouts: config.TimeoutsConfig{
			Health:     time.Second,
			Lookup:     time.Second,
			Create:     time.Second,
			Aggregated: time.Second,
		},
	}

	return NewClient(testLogger(), cfg, nil)
}

func serve(t *testing.T, h http.Handler) string {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return srv.URL
}

func jsonHandler(t *testing.T, status int, v any) http.Handler {
	t.Helper()

	body, err := json.Marshal(v)
	require.NoError(t, err)

	headers := make(http.Header)
	headers.Set("Content-Type", "application/json")

	return httphelpers.HandlerWithResponse(status, headers, body)
}

func TestClient_Health(t *testing.T) {
	url := serve(t, jsonHandler(t, http.StatusOK, HealthResponse{Status: "healthy", Service: "auth"}))
	c := newTestClient(t, map[string]string{config.ServiceAuth: url + "/"})

	resp, err := c.Health(context.Background(), config.ServiceAuth)
	require.NoError(t, err)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "auth", resp.Service)
}

func TestClient_GetUserOrders(t *testing.T) {
	payload := UserOrders{
		UserID: "alice",
		Total:  1,
		Orders: []Order{{ID: "ORD-1", UserID: "alice", Items: []OrderItem{{ProductID: "p1", Quantity: 2, Price: 9.5, Name: "Book"}}}},
	}

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	handler, requests := httphelpers.RecordingHandler(httphelpers.HandlerWithResponse(http.StatusOK, nil, body))
	c := newTestClient(t, map[string]string{config.ServiceOrder: serve(t, handler)})

	orders, n, err := c.GetUserOrders(context.Background(), "alice", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), n)
	require.Len(t, orders.Orders, 1)
	assert.Equal(t, "p1", orders.Orders[0].Items[0].ProductID)

	req := <-requests
	assert.Equal(t, http.MethodGet, req.Request.Method)
	assert.Equal(t, "/api/v1/orders/user/alice", req.Request.URL.Path)
	assert.Equal(t, "100", req.Request.URL.Query().Get("limit"))
}

func TestClient_CreateOrderSendsBody(t *testing.T) {
	handler, requests := httphelpers.RecordingHandler(jsonHandler(t, http.StatusCreated, Order{ID: "ORD-ABCD1234", Status: "pending"}))
	c := newTestClient(t, map[string]string{config.ServiceOrder: serve(t, handler)})

	order, err := c.CreateOrder(context.Background(), CreateOrderRequest{
		UserID:        "alice",
		Items:         []OrderItem{{ProductID: "p1", Quantity: 1, Price: 10, Name: "Lamp"}},
		PaymentMethod: "card",
	})
	require.NoError(t, err)
	assert.Equal(t, "ORD-ABCD1234", order.ID)

	req := <-requests
	assert.Equal(t, http.MethodPost, req.Request.Method)
	assert.Equal(t, "application/json", req.Request.Header.Get("Content-Type"))

	var sent CreateOrderRequest
	require.NoError(t, json.Unmarshal(req.Body, &sent))
	assert.Equal(t, "alice", sent.UserID)
	assert.Equal(t, "p1", sent.Items[0].ProductID)
}

func TestClient_QueryUserOrders(t *testing.T) {
	response := map[string]any{
		"data": map[string]any{
			"userOrders": []map[string]any{
				{
					"id":    "ORD-1",
					"items": []map[string]any{{"productId": "p1", "quantity": 1, "product": map[string]any{"id": "p1", "imageUrl": "x.png"}}},
				},
				{
					"id":    "ORD-2",
					"items": []map[string]any{},
				},
			},
		},
	}

	handler, requests := httphelpers.RecordingHandler(jsonHandler(t, http.StatusOK, response))
	c := newTestClient(t, map[string]string{config.ServiceGraphQL: serve(t, handler)})

	orders, n, err := c.QueryUserOrders(context.Background(), "alice")
	require.NoError(t, err)
	assert.Positive(t, n)
	require.Len(t, orders, 2)
	require.NotNil(t, orders[0].Items[0].Product)
	assert.Equal(t, "x.png", orders[0].Items[0].Product.ImageURL)

	req := <-requests
	assert.Equal(t, "/graphql", req.Request.URL.Path)

	var sent GraphQLRequest
	require.NoError(t, json.Unmarshal(req.Body, &sent))
	assert.Contains(t, sent.Query, "userOrders(userId: $userId)")
	assert.Equal(t, "alice", sent.Variables["userId"])
}

func TestClient_QueryUserOrdersErrors(t *testing.T) {
	response := map[string]any{
		"data":   nil,
		"errors": []map[string]any{{"message": "user not found"}},
	}

	c := newTestClient(t, map[string]string{config.ServiceGraphQL: serve(t, jsonHandler(t, http.StatusOK, response))})

	_, _, err := c.QueryUserOrders(context.Background(), "ghost")
	require.Error(t, err)

	var callErr *CallError
	require.True(t, errors.As(err, &callErr))
	assert.Equal(t, KindGraphQL, callErr.Kind)
	assert.Contains(t, err.Error(), "user not found")
	assert.False(t, errors.Is(err, ErrServiceUnavailable))
}

func TestClient_Errors(t *testing.T) {
	closed := httptest.NewServer(httphelpers.HandlerWithStatus(http.StatusOK))
	closedURL := closed.URL
	closed.Close()

	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}

		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name            string
		url             string
		expectedKind    Kind
		expectedStatus  int
		wantUnavailable bool
	}{
		{
			name:            "connection refused",
			url:             closedURL,
			expectedKind:    KindUnreachable,
			wantUnavailable: true,
		},
		{
			name:            "timeout",
			url:             serve(t, slow),
			expectedKind:    KindTimeout,
			wantUnavailable: true,
		},
		{
			name:           "non 2xx status",
			url:            serve(t, httphelpers.HandlerWithResponse(http.StatusNotFound, nil, []byte(`{"detail":"Item not found"}`))),
			expectedKind:   KindStatus,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "invalid json",
			url:            serve(t, httphelpers.HandlerWithResponse(http.StatusOK, nil, []byte(`{not json`))),
			expectedKind:   KindDecode,
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, map[string]string{config.ServiceCatalog: tt.url})
			c.timeouts.Lookup = 100 * time.Millisecond

			product, n, err := c.GetProduct(context.Background(), "p1")
			require.Error(t, err)
			assert.Nil(t, product)
			assert.Zero(t, n)

			var callErr *CallError
			require.True(t, errors.As(err, &callErr))
			assert.Equal(t, tt.expectedKind, callErr.Kind)
			assert.Equal(t, tt.expectedStatus, callErr.StatusCode)
			assert.Equal(t, config.ServiceCatalog, callErr.Service)
			assert.Equal(t, "GET /api/v1/catalog/items/p1", callErr.Endpoint)
			assert.Equal(t, tt.wantUnavailable, errors.Is(err, ErrServiceUnavailable))
		})
	}
}

func TestClient_UnknownService(t *testing.T) {
	c := newTestClient(t, map[string]string{})

	_, err := c.Health(context.Background(), config.ServicePayment)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrServiceUnavailable))
}
