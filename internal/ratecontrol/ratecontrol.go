// Package ratecontrol paces outbound calls per upstream provider.
package ratecontrol

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	RateLimits struct {
		DefaultRPM        int `yaml:"default_rpm"`
		ProviderOverrides map[string]struct {
			RPM   int `yaml:"rpm"`
			Burst int `yaml:"burst"`
		} `yaml:"provider_overrides"`
	} `yaml:"rate_limits"`
}

// RateLimit is requests per minute plus burst. RPM <= 0 means unlimited.
type RateLimit struct {
	RPM   int
	Burst int
}

var builtInProviderLimits = map[string]RateLimit{
	"serper":       {RPM: 300, Burst: 10},
	"openpagerank": {RPM: 150, Burst: 5},
	"openai":       {RPM: 3000, Burst: 50},
	"anthropic":    {RPM: 1000, Burst: 20},
}

// Registry hands out one shared limiter per provider
type Registry struct {
	defaultRPM int
	overrides  map[string]RateLimit

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRegistry uses only the built-in limits
func NewRegistry() *Registry {
	return &Registry{overrides: map[string]RateLimit{}, limiters: map[string]*rate.Limiter{}}
}

// Load reads overrides from path. An empty path or missing file yields the
// built-in limits; a malformed file is an error.
func Load(path string, logger *zap.Logger) (*Registry, error) {
	r := NewRegistry()
	if path == "" {
		return r, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if logger != nil {
			logger.Warn("Rate limit config not loaded, using built-in limits", zap.String("path", path), zap.Error(err))
		}
		return r, nil
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse rate limits %s: %w", path, err)
	}
	r.defaultRPM = cfg.RateLimits.DefaultRPM
	for name, o := range cfg.RateLimits.ProviderOverrides {
		r.overrides[normalize(name)] = RateLimit{RPM: o.RPM, Burst: o.Burst}
	}
	if logger != nil {
		logger.Info("Loaded rate limit configuration", zap.String("path", path), zap.Int("overrides", len(r.overrides)))
	}
	return r, nil
}

// LimitFor resolves override, then built-in, then the file default
func (r *Registry) LimitFor(provider string) RateLimit {
	key := normalize(provider)
	if l, ok := r.overrides[key]; ok {
		return l
	}
	if l, ok := builtInProviderLimits[key]; ok {
		return l
	}
	return RateLimit{RPM: r.defaultRPM}
}

// Limiter returns the shared limiter for provider
func (r *Registry) Limiter(provider string) *rate.Limiter {
	key := normalize(provider)
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.limiters[key]; ok {
		return l
	}
	l := newLimiter(r.LimitFor(key))
	r.limiters[key] = l
	return l
}

// Wait blocks until provider may be called or ctx is done
func (r *Registry) Wait(ctx context.Context, provider string) error {
	if r == nil {
		return nil
	}
	return r.Limiter(provider).Wait(ctx)
}

func newLimiter(l RateLimit) *rate.Limiter {
	if l.RPM <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := l.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.RPM)), burst)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
