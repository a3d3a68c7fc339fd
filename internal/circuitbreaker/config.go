package circuitbreaker

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// BreakerSettings is the env-overridable form of Config
type BreakerSettings struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
	SuccessThreshold uint32
}

// GetRedisConfig returns the embedding-cache Redis breaker settings (CB_REDIS_*)
func GetRedisConfig() BreakerSettings {
	return BreakerSettings{
		MaxRequests:      getEnvUint32("CB_REDIS_MAX_REQUESTS", 5),
		Interval:         getEnvDuration("CB_REDIS_INTERVAL", 30*time.Second),
		Timeout:          getEnvDuration("CB_REDIS_TIMEOUT", 15*time.Second),
		FailureThreshold: getEnvUint32("CB_REDIS_FAILURE_THRESHOLD", 3),
		SuccessThreshold: getEnvUint32("CB_REDIS_SUCCESS_THRESHOLD", 2),
	}
}

// GetHTTPConfig returns breaker settings for an outbound HTTP upstream.
// Upstream-specific variables (CB_SERPER_TIMEOUT, ...) win over the shared
// CB_HTTP_* ones.
func GetHTTPConfig(upstream string) BreakerSettings {
	prefix := "CB_" + strings.ToUpper(strings.ReplaceAll(upstream, "-", "_")) + "_"
	return BreakerSettings{
		MaxRequests:      getEnvUint32(prefix+"MAX_REQUESTS", getEnvUint32("CB_HTTP_MAX_REQUESTS", 5)),
		Interval:         getEnvDuration(prefix+"INTERVAL", getEnvDuration("CB_HTTP_INTERVAL", 30*time.Second)),
		Timeout:          getEnvDuration(prefix+"TIMEOUT", getEnvDuration("CB_HTTP_TIMEOUT", 15*time.Second)),
		FailureThreshold: getEnvUint32(prefix+"FAILURE_THRESHOLD", getEnvUint32("CB_HTTP_FAILURE_THRESHOLD", 5)),
		SuccessThreshold: getEnvUint32(prefix+"SUCCESS_THRESHOLD", getEnvUint32("CB_HTTP_SUCCESS_THRESHOLD", 2)),
	}
}

// ToConfig converts settings to a breaker Config
func (s BreakerSettings) ToConfig() Config {
	return Config{
		MaxRequests:      s.MaxRequests,
		Interval:         s.Interval,
		Timeout:          s.Timeout,
		FailureThreshold: s.FailureThreshold,
		SuccessThreshold: s.SuccessThreshold,
	}
}

func getEnvUint32(key string, defaultValue uint32) uint32 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseUint(val, 10, 32); err == nil {
			return uint32(parsed)
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}
