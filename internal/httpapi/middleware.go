package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/linkscout/citefinder/internal/metrics"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestIDFrom returns the id set by the middleware, or ""
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Middleware applies request ids, the inbound rate limit, the body size cap,
// access logging and the HTTP metrics to each API route.
type Middleware struct {
	limiter      *rate.Limiter
	maxBodyBytes int64
	logger       *zap.Logger
}

// NewMiddleware builds the chain. rps <= 0 disables rate limiting and
// maxBodyBytes <= 0 disables the body cap.
func NewMiddleware(rps float64, burst int, maxBodyBytes int64, logger *zap.Logger) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Middleware{maxBodyBytes: maxBodyBytes, logger: logger}
	if rps > 0 {
		if burst <= 0 {
			burst = int(rps) + 1
		}
		m.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return m
}

// Wrap has the signature Handler.RegisterRoutes expects
func (m *Middleware) Wrap(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			dur := time.Since(start)
			metrics.RecordHTTPMetrics(route, strconv.Itoa(rec.status), dur.Seconds())
			m.logger.Info("HTTP request",
				zap.String("route", route),
				zap.String("request_id", id),
				zap.Int("status", rec.status),
				zap.Duration("duration", dur),
			)
		}()

		if m.limiter != nil && !m.limiter.Allow() {
			metrics.RateLimited.Inc()
			writeError(rec, http.StatusTooManyRequests, "rate_limited")
			return
		}
		if m.maxBodyBytes > 0 && r.Body != nil {
			r.Body = http.MaxBytesReader(rec, r.Body, m.maxBodyBytes)
		}
		next.ServeHTTP(rec, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}
