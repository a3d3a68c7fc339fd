package circuitbreaker

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HTTPDoer is the subset of *http.Client used by upstream clients
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPWrapper wraps an http.Client with a circuit breaker and records metrics consistently
type HTTPWrapper struct {
	client  *http.Client
	cb      *CircuitBreaker
	name    string
	service string
}

// NewHTTPWrapper creates a breaker-guarded client for one upstream API.
// Breaker settings come from CB_<UPSTREAM>_* or CB_HTTP_* variables.
func NewHTTPWrapper(client *http.Client, upstream string, logger *zap.Logger) *HTTPWrapper {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	cb := NewCircuitBreaker(upstream, GetHTTPConfig(upstream).ToConfig(), logger)
	GlobalMetricsCollector.RegisterCircuitBreaker(upstream, "http", cb)
	return &HTTPWrapper{client: client, cb: cb, name: upstream, service: "http"}
}

// Do executes an HTTP request through the circuit breaker. 5xx and 429
// responses count as failures for breaker purposes; other 4xx do not.
func (hw *HTTPWrapper) Do(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	err := hw.cb.Execute(req.Context(), func() error {
		var err2 error
		resp, err2 = hw.client.Do(req)
		if err2 != nil {
			return err2
		}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return &httpStatusError{code: resp.StatusCode}
		}
		return nil
	})

	GlobalMetricsCollector.RecordRequest(hw.name, hw.service, hw.cb.State(), err == nil)

	// 5xx and 429: the caller still gets the response and decides what it means
	if _, ok := err.(*httpStatusError); ok {
		return resp, nil
	}
	return resp, err
}

// Breaker exposes the underlying breaker for health checks
func (hw *HTTPWrapper) Breaker() *CircuitBreaker { return hw.cb }

type httpStatusError struct{ code int }

func (e *httpStatusError) Error() string { return http.StatusText(e.code) }
