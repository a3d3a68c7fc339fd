package circuitbreaker

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestHTTPWrapperReturnsServerErrorsAndTrips(t *testing.T) {
	t.Setenv("CB_FLAKY_FAILURE_THRESHOLD", "2")

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	hw := NewHTTPWrapper(srv.Client(), "flaky", zaptest.NewLogger(t))

	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
		resp, err := hw.Do(req)
		require.NoError(t, err, "5xx is returned to the caller, not as an error")
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		resp.Body.Close()
	}
	assert.Equal(t, StateOpen, hw.Breaker().State())

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	_, err := hw.Do(req)
	assert.True(t, errors.Is(err, ErrCircuitBreakerOpen))
	assert.Equal(t, 2, calls)
}

func TestHTTPWrapperClientErrorsDoNotTrip(t *testing.T) {
	t.Setenv("CB_PICKY_FAILURE_THRESHOLD", "1")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	hw := NewHTTPWrapper(srv.Client(), "picky", zaptest.NewLogger(t))
	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
		resp, err := hw.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.Equal(t, StateClosed, hw.Breaker().State())
}

func TestHTTPWrapperTooManyRequestsTrips(t *testing.T) {
	t.Setenv("CB_QUOTA_FAILURE_THRESHOLD", "2")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	hw := NewHTTPWrapper(srv.Client(), "quota", zaptest.NewLogger(t))
	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
		resp, err := hw.Do(req)
		require.NoError(t, err, "429 is returned to the caller, not as an error")
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		resp.Body.Close()
	}
	assert.Equal(t, StateOpen, hw.Breaker().State())
}
