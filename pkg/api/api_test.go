package api

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethpandaops/gatewaybench/pkg/config"
	"github.com/ethpandaops/gatewaybench/pkg/executor"
	"github.com/ethpandaops/gatewaybench/pkg/runindex"
	"github.com/ethpandaops/gatewaybench/pkg/summary"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	handler http.Handler
	logDir  string
}

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

func newTestStore(t *testing.T) runindex.Store {
	t.Helper()

	return runindex.NewStore(testLogger(), &config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteDatabaseConfig{Path: filepath.Join(t.TempDir(), "index.db")},
	})
}

func newFixture(t *testing.T, cfg *config.APIConfig) *fixture {
	t.Helper()

	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Start(ctx))
	t.Cleanup(func() { _ = store.Stop() })

	logDir := t.TempDir()
	gatewayLog := filepath.Join(logDir, "graphql%2Ftest_gateway.log")
	require.NoError(t, os.WriteFile(gatewayLog, []byte("AssertionError: expected 3 orders\n"), 0o644))

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	older := summary.Aggregate([]executor.TestResult{
		{Name: "test_auth", ExitCode: 0, Duration: time.Second},
	})
	require.NoError(t, runindex.Record(ctx, store, runindex.RunInfo{
		RunID:      "run-old",
		StartedAt:  started.Add(-time.Hour),
		FinishedAt: started.Add(-time.Hour + time.Minute),
	}, older))

	newer := summary.Aggregate([]executor.TestResult{
		{Name: "test_auth", ExitCode: 0, LogPath: filepath.Join(logDir, "test_auth.log")},
		{Name: "graphql/test_gateway", ExitCode: 1, LogPath: gatewayLog},
		{Name: "relative", ExitCode: 0, LogPath: "relative.log"},
	})
	require.NoError(t, runindex.Record(ctx, store, runindex.RunInfo{
		RunID:      "run-new",
		Pattern:    "test_*.py",
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
	}, newer))

	s := newServer(testLogger(), cfg, store)
	t.Cleanup(func() {
		if s.limiter != nil {
			s.limiter.stop()
		}
	})

	return &fixture{handler: s.buildRouter(), logDir: logDir}
}

func (f *fixture) get(t *testing.T, path string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	return rec
}

func defaultAPIConfig() *config.APIConfig {
	return &config.APIConfig{Listen: "127.0.0.1:0", CORSOrigins: []string{"*"}}
}

func TestHandleHealth(t *testing.T) {
	f := newFixture(t, defaultAPIConfig())

	rec := f.get(t, "/api/v1/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleListRuns(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		status   int
		expected []string
	}{
		{name: "newest first", query: "", status: http.StatusOK, expected: []string{"run-new", "run-old"}},
		{name: "limited", query: "?limit=1", status: http.StatusOK, expected: []string{"run-new"}},
		{name: "invalid limit", query: "?limit=abc", status: http.StatusBadRequest},
		{name: "zero limit", query: "?limit=0", status: http.StatusBadRequest},
	}

	f := newFixture(t, defaultAPIConfig())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.get(t, "/api/v1/runs"+tt.query)
			require.Equal(t, tt.status, rec.Code)

			if tt.status != http.StatusOK {
				return
			}

			var body struct {
				Runs []runindex.Run `json:"runs"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

			ids := make([]string, 0, len(body.Runs))
			for _, r := range body.Runs {
				ids = append(ids, r.RunID)
			}

			assert.Equal(t, tt.expected, ids)
		})
	}
}

func TestHandleGetRun(t *testing.T) {
	f := newFixture(t, defaultAPIConfig())

	rec := f.get(t, "/api/v1/runs/run-new")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		RunID       string                `json:"run_id"`
		Status      string                `json:"status"`
		ExitCode    int                   `json:"exit_code"`
		UnitsFailed int                   `json:"units_failed"`
		Units       []runindex.UnitResult `json:"units"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, "run-new", body.RunID)
	assert.Equal(t, runindex.StatusFailed, body.Status)
	assert.Equal(t, 1, body.ExitCode)
	assert.Equal(t, 1, body.UnitsFailed)
	require.Len(t, body.Units, 3)
	assert.Equal(t, "test_auth", body.Units[0].Name)
	assert.Equal(t, "graphql/test_gateway", body.Units[1].Name)

	rec = f.get(t, "/api/v1/runs/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleUnitLog(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		status   int
		contains string
	}{
		{
			name:     "nested unit name",
			path:     "/api/v1/runs/run-new/logs/graphql/test_gateway",
			status:   http.StatusOK,
			contains: "expected 3 orders",
		},
		{name: "unknown unit", path: "/api/v1/runs/run-new/logs/test_missing", status: http.StatusNotFound},
		{name: "unknown run", path: "/api/v1/runs/nope/logs/test_auth", status: http.StatusNotFound},
		{name: "log file deleted", path: "/api/v1/runs/run-new/logs/test_auth", status: http.StatusNotFound},
		{name: "relative log path", path: "/api/v1/runs/run-new/logs/relative", status: http.StatusNotFound},
	}

	f := newFixture(t, defaultAPIConfig())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.get(t, tt.path)
			require.Equal(t, tt.status, rec.Code)

			if tt.contains != "" {
				assert.Contains(t, rec.Body.String(), tt.contains)
				assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, defaultAPIConfig())

	require.Equal(t, http.StatusOK, f.get(t, "/api/v1/runs").Code)

	rec := f.get(t, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gatewaybench_api_requests_total")
	assert.Contains(t, rec.Body.String(), `route="/api/v1/runs`)
}

func TestRateLimit(t *testing.T) {
	cfg := defaultAPIConfig()
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2}

	f := newFixture(t, cfg)

	assert.Equal(t, http.StatusOK, f.get(t, "/api/v1/runs").Code)
	assert.Equal(t, http.StatusOK, f.get(t, "/api/v1/runs").Code)

	limited := f.get(t, "/api/v1/runs")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "30", limited.Header().Get("Retry-After"))

	// A different client has its own budget.
	assert.Equal(t, http.StatusOK, f.get(t, "/api/v1/runs", "X-Forwarded-For", "10.0.0.9").Code)

	// Health is not limited.
	assert.Equal(t, http.StatusOK, f.get(t, "/api/v1/health").Code)

	assert.Contains(t, f.get(t, "/metrics").Body.String(), "gatewaybench_api_rate_limited_total 1")
}

func TestClientLimiters(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cl := newClientLimiters(6)
	t.Cleanup(cl.stop)

	cl.now = func() time.Time { return now }

	for i := 0; i < 6; i++ {
		ok, _ := cl.allow("192.0.2.1")
		require.True(t, ok, "request %d within burst", i+1)
	}

	ok, wait := cl.allow("192.0.2.1")
	assert.False(t, ok)
	assert.InDelta(t, 10, wait.Seconds(), 0.001)

	// A rejected request does not consume the next token.
	now = now.Add(11 * time.Second)

	ok, _ = cl.allow("192.0.2.1")
	assert.True(t, ok)

	ok, _ = cl.allow("192.0.2.2")
	assert.True(t, ok)

	assert.Equal(t, 2, cl.sweep())

	now = now.Add(clientIdleTTL + time.Second)
	assert.Equal(t, 0, cl.sweep())
}

func TestCORS(t *testing.T) {
	f := newFixture(t, defaultAPIConfig())

	rec := f.get(t, "/api/v1/health", "Origin", "http://dashboard.local")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestExtractIP(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		remote string
		want   string
	}{
		{name: "remote addr", remote: "192.0.2.1:5555", want: "192.0.2.1"},
		{name: "forwarded chain", xff: "203.0.113.7, 10.0.0.1", remote: "192.0.2.1:5555", want: "203.0.113.7"},
		{name: "no port", remote: "192.0.2.1", want: "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote

			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}

			assert.Equal(t, tt.want, extractIP(req))
		})
	}
}

func TestServer_StartStop(t *testing.T) {
	srv := NewServer(testLogger(), defaultAPIConfig(), newTestStore(t))
	require.NoError(t, srv.Start(context.Background()))

	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, srv.Stop())
}

type stopCountingStore struct {
	runindex.Store
	stops int
}

func (s *stopCountingStore) Stop() error {
	s.stops++

	return s.Store.Stop()
}

func TestServer_StartListenFailureClosesStore(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = taken.Close() })

	store := &stopCountingStore{Store: newTestStore(t)}
	cfg := defaultAPIConfig()
	cfg.Listen = taken.Addr().String()

	srv := NewServer(testLogger(), cfg, store)

	err = srv.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listening on")
	assert.Equal(t, 1, store.stops)
}
