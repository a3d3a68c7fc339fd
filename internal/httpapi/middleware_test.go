package httpapi

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMiddlewareRequestID(t *testing.T) {
	var seen string
	h := NewMiddleware(0, 0, 0, zaptest.NewLogger(t)).Wrap("test", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36, "generated uuid")
	assert.Equal(t, rec.Header().Get(RequestIDHeader), seen)
}

func TestMiddlewareRateLimit(t *testing.T) {
	calls := 0
	h := NewMiddleware(0.001, 1, 0, zaptest.NewLogger(t)).Wrap("test", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"rate_limited"}`, rec.Body.String())
	assert.Equal(t, 1, calls)
}

func TestMiddlewareBodyLimit(t *testing.T) {
	mux := http.NewServeMux()
	NewHandler(&fakeAnalyzer{}, fakeExplainer{}, nil).RegisterRoutes(mux, NewMiddleware(0, 0, 16, zaptest.NewLogger(t)).Wrap)

	rec := post(t, mux, "/api/ai", `{"text":"`+strings.Repeat("a", 100)+`"}`)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.JSONEq(t, `{"error":"body too large"}`, string(body))
}
