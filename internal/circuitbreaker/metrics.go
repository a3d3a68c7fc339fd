package circuitbreaker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	circuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "citefinder_circuit_breaker_state",
			Help: "Current state of circuit breaker (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name", "service"},
	)

	circuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citefinder_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "service", "state", "result"},
	)

	circuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citefinder_circuit_breaker_state_changes_total",
			Help: "Total number of state changes in circuit breaker",
		},
		[]string{"name", "service", "from_state", "to_state"},
	)
)

// Registration pairs a breaker with the service label it reports under
type Registration struct {
	Name    string
	Service string
	Breaker *CircuitBreaker
}

// MetricsCollector tracks registered breakers for metrics and health reporting
type MetricsCollector struct {
	breakers map[string]Registration
	mutex    sync.RWMutex
}

// NewMetricsCollector creates an empty collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{breakers: make(map[string]Registration)}
}

// RegisterCircuitBreaker registers cb and hooks its state changes into metrics.
// Must be called before the breaker serves traffic.
func (mc *MetricsCollector) RegisterCircuitBreaker(name, service string, cb *CircuitBreaker) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	mc.breakers[service+":"+name] = Registration{Name: name, Service: service, Breaker: cb}

	original := cb.config.OnStateChange
	cb.config.OnStateChange = func(cbName string, from State, to State) {
		if original != nil {
			original(cbName, from, to)
		}
		circuitBreakerStateChanges.WithLabelValues(name, service, from.String(), to.String()).Inc()
		circuitBreakerState.WithLabelValues(name, service).Set(float64(to))
	}
	circuitBreakerState.WithLabelValues(name, service).Set(float64(StateClosed))
}

// RecordRequest records one request attempt through a breaker
func (mc *MetricsCollector) RecordRequest(name, service string, state State, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	circuitBreakerRequests.WithLabelValues(name, service, state.String(), result).Inc()
}

// Registrations returns registered breakers sorted by service then name
func (mc *MetricsCollector) Registrations() []Registration {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()

	out := make([]Registration, 0, len(mc.breakers))
	for _, r := range mc.breakers {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Service != out[j].Service {
			return out[i].Service < out[j].Service
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// UpdateMetrics refreshes the state gauge of every registered breaker. Open
// breakers only move to half-open when observed, so this also drives that.
func (mc *MetricsCollector) UpdateMetrics() {
	for _, r := range mc.Registrations() {
		circuitBreakerState.WithLabelValues(r.Name, r.Service).Set(float64(r.Breaker.State()))
	}
}

// GlobalMetricsCollector is the process-wide breaker registry
var GlobalMetricsCollector = NewMetricsCollector()

// StartMetricsCollection refreshes breaker gauges until ctx is done
func StartMetricsCollection(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				GlobalMetricsCollector.UpdateMetrics()
			}
		}
	}()
}
