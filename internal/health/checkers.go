package health

import (
	"context"
	"time"

	"github.com/linkscout/citefinder/internal/circuitbreaker"
)

// RedisHealthChecker pings the embedding-cache Redis through its breaker.
// The cache is optional, so failure degrades rather than fails readiness.
type RedisHealthChecker struct {
	wrapper *circuitbreaker.RedisWrapper
	timeout time.Duration
}

func NewRedisHealthChecker(wrapper *circuitbreaker.RedisWrapper) *RedisHealthChecker {
	return &RedisHealthChecker{wrapper: wrapper, timeout: 2 * time.Second}
}

func (r *RedisHealthChecker) Name() string           { return "redis" }
func (r *RedisHealthChecker) IsCritical() bool       { return false }
func (r *RedisHealthChecker) Timeout() time.Duration { return r.timeout }

func (r *RedisHealthChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	if r.wrapper.IsCircuitBreakerOpen() {
		return CheckResult{
			Status:  StatusUnhealthy,
			Error:   "circuit breaker open",
			Message: "Redis circuit breaker is open",
		}
	}

	err := r.wrapper.Ping(ctx).Err()
	latency := time.Since(start)
	if err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Error:   err.Error(),
			Message: "Redis ping failed",
			Details: map[string]interface{}{"latency_ms": latency.Milliseconds()},
		}
	}

	result := CheckResult{
		Status:  StatusHealthy,
		Message: "Redis healthy",
		Details: map[string]interface{}{"latency_ms": latency.Milliseconds()},
	}
	if latency > 100*time.Millisecond {
		result.Status = StatusDegraded
		result.Message = "Redis responding but with high latency"
	}
	return result
}

// BreakerHealthChecker reports the breaker guarding one upstream. An open
// breaker means that upstream's signal or phrase results are degrading, so
// it is reported as degraded unless the checker is marked critical.
type BreakerHealthChecker struct {
	name     string
	breaker  *circuitbreaker.CircuitBreaker
	critical bool
}

func NewBreakerHealthChecker(name string, breaker *circuitbreaker.CircuitBreaker, critical bool) *BreakerHealthChecker {
	return &BreakerHealthChecker{name: name, breaker: breaker, critical: critical}
}

func (b *BreakerHealthChecker) Name() string           { return "breaker:" + b.name }
func (b *BreakerHealthChecker) IsCritical() bool       { return b.critical }
func (b *BreakerHealthChecker) Timeout() time.Duration { return time.Second }

func (b *BreakerHealthChecker) Check(context.Context) CheckResult {
	state := b.breaker.State()
	counts := b.breaker.Counts()
	result := CheckResult{
		Status:  StatusHealthy,
		Message: "circuit " + state.String(),
		Details: map[string]interface{}{
			"state":                state.String(),
			"requests":             counts.Requests,
			"consecutive_failures": counts.ConsecutiveFailures,
		},
	}
	switch state {
	case circuitbreaker.StateOpen:
		result.Status = StatusDegraded
		if b.critical {
			result.Status = StatusUnhealthy
		}
	case circuitbreaker.StateHalfOpen:
		result.Status = StatusDegraded
	}
	return result
}

// ConfigHealthChecker reports a required setting that is missing, such as
// an API key. Without it the matching feature cannot work at all.
type ConfigHealthChecker struct {
	name     string
	present  bool
	critical bool
}

func NewConfigHealthChecker(name string, present, critical bool) *ConfigHealthChecker {
	return &ConfigHealthChecker{name: name, present: present, critical: critical}
}

func (c *ConfigHealthChecker) Name() string           { return "config:" + c.name }
func (c *ConfigHealthChecker) IsCritical() bool       { return c.critical }
func (c *ConfigHealthChecker) Timeout() time.Duration { return time.Second }

func (c *ConfigHealthChecker) Check(context.Context) CheckResult {
	if c.present {
		return CheckResult{Status: StatusHealthy, Message: c.name + " configured"}
	}
	return CheckResult{Status: StatusUnhealthy, Message: c.name + " not configured"}
}
