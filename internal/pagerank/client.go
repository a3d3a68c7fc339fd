// Package pagerank looks up domain authority from OpenPageRank.
package pagerank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/linkscout/citefinder/internal/circuitbreaker"
	"github.com/linkscout/citefinder/internal/config"
	"github.com/linkscout/citefinder/internal/metrics"
	"github.com/linkscout/citefinder/internal/ratecontrol"
	"github.com/linkscout/citefinder/internal/tracing"
)

const (
	upstreamName = "openpagerank"
	// maxDomainsPerRequest is the API's batch limit
	maxDomainsPerRequest = 100
)

var ErrUpstream = errors.New("pagerank upstream failure")

// Lookup maps registrable domains to page_rank_integer (0-10)
type Lookup interface {
	PageRanks(ctx context.Context, domains []string) (map[string]int, error)
}

type Client struct {
	http    circuitbreaker.HTTPDoer
	cfg     config.PageRankConfig
	limits  *ratecontrol.Registry
	timeout time.Duration
	logger  *zap.Logger
}

func NewClient(doer circuitbreaker.HTTPDoer, cfg config.PageRankConfig, limits *ratecontrol.Registry, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{http: doer, cfg: cfg, limits: limits, timeout: timeout, logger: logger}
}

// Enabled reports whether an API key is configured
func (c *Client) Enabled() bool { return c.cfg.APIKey != "" }

type oprResponse struct {
	StatusCode int `json:"status_code"`
	Response   []struct {
		StatusCode      int             `json:"status_code"`
		Domain          string          `json:"domain"`
		PageRankInteger json.RawMessage `json:"page_rank_integer"`
	} `json:"response"`
}

// PageRanks looks up all distinct domains, batching up to the API limit per
// request. Without an API key it returns an empty map. Domains the API does
// not know are absent from the result.
func (c *Client) PageRanks(ctx context.Context, domains []string) (map[string]int, error) {
	out := make(map[string]int)
	if !c.Enabled() {
		return out, nil
	}

	unique := dedupe(domains)
	if len(unique) == 0 {
		return out, nil
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	for start := 0; start < len(unique); start += maxDomainsPerRequest {
		end := start + maxDomainsPerRequest
		if end > len(unique) {
			end = len(unique)
		}
		if err := c.lookup(ctx, unique[start:end], out); err != nil {
			c.logger.Debug("Page rank lookup failed", zap.Strings("domains", unique[start:end]), zap.Error(err))
			return out, err
		}
	}
	return out, nil
}

func (c *Client) lookup(ctx context.Context, domains []string, into map[string]int) (err error) {
	if err := c.limits.Wait(ctx, upstreamName); err != nil {
		return fmt.Errorf("%w: rate limit wait: %w", ErrUpstream, err)
	}

	q := url.Values{}
	for _, d := range domains {
		q.Add("domains[]", d)
	}
	endpoint := c.cfg.Endpoint + "?" + q.Encode()

	start := time.Now()
	ctx, span := tracing.StartHTTPSpan(ctx, upstreamName, http.MethodGet, c.cfg.Endpoint)
	defer func() {
		tracing.EndSpan(span, err)
		metrics.RecordUpstreamMetrics(upstreamName, metrics.StatusLabel(err), time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("API-OPR", c.cfg.APIKey)
	tracing.InjectTraceparent(ctx, req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var body oprResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrUpstream, err)
	}
	for _, r := range body.Response {
		if r.StatusCode != 0 && r.StatusCode != http.StatusOK {
			continue
		}
		n, ok := parseRank(r.PageRankInteger)
		if !ok {
			continue
		}
		into[strings.ToLower(r.Domain)] = n
	}
	return nil
}

// parseRank accepts a number or a numeric string; the API has returned both
func parseRank(raw json.RawMessage) (int, bool) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return clampRank(int(f)), true
}

func clampRank(n int) int {
	switch {
	case n < 0:
		return 0
	case n > 10:
		return 10
	default:
		return n
	}
}

func dedupe(domains []string) []string {
	seen := make(map[string]bool, len(domains))
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}
