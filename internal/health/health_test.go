package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/linkscout/citefinder/internal/circuitbreaker"
)

type staticChecker struct {
	name     string
	status   CheckStatus
	critical bool
}

func (s staticChecker) Name() string           { return s.name }
func (s staticChecker) IsCritical() bool       { return s.critical }
func (s staticChecker) Timeout() time.Duration { return time.Second }
func (s staticChecker) Check(context.Context) CheckResult {
	return CheckResult{Status: s.status}
}

func TestManagerOverallStatus(t *testing.T) {
	tests := []struct {
		name     string
		checkers []staticChecker
		status   CheckStatus
		ready    bool
	}{
		{"none", nil, StatusHealthy, true},
		{"all healthy", []staticChecker{{"a", StatusHealthy, true}, {"b", StatusHealthy, false}}, StatusHealthy, true},
		{"non-critical failing", []staticChecker{{"a", StatusHealthy, true}, {"b", StatusUnhealthy, false}}, StatusDegraded, true},
		{"degraded", []staticChecker{{"a", StatusDegraded, true}}, StatusDegraded, true},
		{"critical failing", []staticChecker{{"a", StatusUnhealthy, true}, {"b", StatusHealthy, false}}, StatusUnhealthy, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(zaptest.NewLogger(t))
			for _, c := range tt.checkers {
				require.NoError(t, m.RegisterChecker(c))
			}
			overall := m.GetOverallHealth(context.Background())
			assert.Equal(t, tt.status, overall.Status)
			assert.Equal(t, tt.ready, overall.Ready)
			assert.True(t, m.IsLive(context.Background()))
		})
	}
}

func TestManagerRejectsDuplicates(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.RegisterChecker(staticChecker{name: "a"}))
	assert.Error(t, m.RegisterChecker(staticChecker{name: "a"}))
	assert.Error(t, m.RegisterChecker(staticChecker{name: ""}))
	assert.Equal(t, []string{"a"}, m.CheckerNames())
}

func TestManagerCachesLastResults(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.RegisterChecker(staticChecker{name: "a", status: StatusDegraded}))

	assert.Empty(t, m.GetLastResults().Components)
	m.GetDetailedHealth(context.Background())

	cached := m.GetLastResults()
	require.Contains(t, cached.Components, "a")
	assert.Equal(t, StatusDegraded, cached.Overall.Status)
}

func TestBreakerHealthChecker(t *testing.T) {
	cb := circuitbreaker.NewCircuitBreaker("serper", circuitbreaker.Config{
		MaxRequests:      1,
		Timeout:          time.Hour,
		FailureThreshold: 1,
		SuccessThreshold: 1,
	}, zaptest.NewLogger(t))

	c := NewBreakerHealthChecker("serper", cb, false)
	assert.Equal(t, "breaker:serper", c.Name())
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)

	_ = cb.Execute(context.Background(), func() error { return assert.AnError })
	assert.Equal(t, StatusDegraded, c.Check(context.Background()).Status)
	assert.Equal(t, StatusUnhealthy, NewBreakerHealthChecker("serper", cb, true).Check(context.Background()).Status)
}

func TestRedisHealthChecker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewRedisHealthChecker(circuitbreaker.NewRedisWrapper(client, zaptest.NewLogger(t)))
	assert.False(t, c.IsCritical())
	res := c.Check(context.Background())
	assert.Contains(t, []CheckStatus{StatusHealthy, StatusDegraded}, res.Status)

	mr.Close()
	assert.Equal(t, StatusUnhealthy, c.Check(context.Background()).Status)
}

func TestConfigHealthChecker(t *testing.T) {
	assert.Equal(t, StatusHealthy, NewConfigHealthChecker("serper_key", true, true).Check(context.Background()).Status)
	assert.Equal(t, StatusUnhealthy, NewConfigHealthChecker("serper_key", false, true).Check(context.Background()).Status)
}

func TestHTTPEndpoints(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))
	require.NoError(t, m.RegisterChecker(staticChecker{name: "search", status: StatusUnhealthy, critical: true}))
	mux := http.NewServeMux()
	NewHTTPHandler(m, zaptest.NewLogger(t)).RegisterRoutes(mux)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	assert.Equal(t, http.StatusServiceUnavailable, get("/health").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get("/health/ready").Code)
	assert.Equal(t, http.StatusOK, get("/health/live").Code)

	rec := get("/health/detailed")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body struct {
		Overall struct {
			Status string `json:"status"`
		} `json:"overall"`
		Components map[string]struct {
			Status   string `json:"status"`
			Critical bool   `json:"critical"`
		} `json:"components"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body.Overall.Status)
	assert.Equal(t, "unhealthy", body.Components["search"].Status)
	assert.True(t, body.Components["search"].Critical)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
