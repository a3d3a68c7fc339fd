package ratecontrol

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/time/rate"
)

func TestLimitFor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rate_limits.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rate_limits:
  default_rpm: 60
  provider_overrides:
    Serper:
      rpm: 30
      burst: 2
`), 0o600))

	r, err := Load(path, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Equal(t, RateLimit{RPM: 30, Burst: 2}, r.LimitFor("serper"))
	assert.Equal(t, builtInProviderLimits["openpagerank"], r.LimitFor("OpenPageRank"))
	assert.Equal(t, RateLimit{RPM: 60}, r.LimitFor("somewhere-else"))
}

func TestLoadMissingAndMalformed(t *testing.T) {
	r, err := Load(filepath.Join(t.TempDir(), "none.yaml"), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, builtInProviderLimits["serper"], r.LimitFor("serper"))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("rate_limits: [oops"), 0o600))
	_, err = Load(bad, nil)
	assert.Error(t, err)
}

func TestLimiterShared(t *testing.T) {
	r := NewRegistry()
	assert.Same(t, r.Limiter("serper"), r.Limiter(" SERPER "))
	assert.Equal(t, rate.Inf, r.Limiter("unlisted").Limit())
}

func TestWaitRespectsContext(t *testing.T) {
	r := NewRegistry()
	r.overrides["slow"] = RateLimit{RPM: 1, Burst: 1}

	require.NoError(t, r.Wait(context.Background(), "slow"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, r.Wait(ctx, "slow"), "second call inside the minute must not get a token")

	var nilRegistry *Registry
	assert.NoError(t, nilRegistry.Wait(context.Background(), "serper"))
}
