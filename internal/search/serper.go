// Package search retrieves organic web results for a query from Serper.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/linkscout/citefinder/internal/circuitbreaker"
	"github.com/linkscout/citefinder/internal/config"
	"github.com/linkscout/citefinder/internal/metrics"
	"github.com/linkscout/citefinder/internal/query"
	"github.com/linkscout/citefinder/internal/ratecontrol"
	"github.com/linkscout/citefinder/internal/textproc"
	"github.com/linkscout/citefinder/internal/tracing"
)

const upstreamName = "serper"

// ErrUpstream marks a failed or unusable search response
var ErrUpstream = errors.New("search upstream failure")

// RawResult is one organic result
type RawResult struct {
	Title    string
	URL      string
	Snippet  string
	Position int
}

// Retriever is implemented by *Client and by test fakes
type Retriever interface {
	Search(ctx context.Context, q query.SearchQuery) ([]RawResult, error)
}

// Client is a Serper search client
type Client struct {
	http    circuitbreaker.HTTPDoer
	cfg     config.SearchConfig
	limits  *ratecontrol.Registry
	timeout time.Duration
	logger  *zap.Logger
}

// NewClient builds a client. doer is normally a circuit-breaker HTTPWrapper;
// limits may be nil.
func NewClient(doer circuitbreaker.HTTPDoer, cfg config.SearchConfig, limits *ratecontrol.Registry, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.NumResults <= 0 {
		cfg.NumResults = 10
	}
	if cfg.KeyHeader == "" {
		cfg.KeyHeader = "X-RapidAPI-Key"
	}
	return &Client{http: doer, cfg: cfg, limits: limits, timeout: timeout, logger: logger}
}

type serperRequest struct {
	Q   string `json:"q"`
	GL  string `json:"gl,omitempty"`
	HL  string `json:"hl,omitempty"`
	Num int    `json:"num,omitempty"`
}

type serperResponse struct {
	Organic []struct {
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
		Position int    `json:"position"`
	} `json:"organic"`
}

// Search issues one request. Non-2xx status, transport failure and a body
// that is not JSON all return an error wrapping ErrUpstream. A response
// without organic results is an empty list.
func (c *Client) Search(ctx context.Context, q query.SearchQuery) ([]RawResult, error) {
	if strings.TrimSpace(q.Text) == "" {
		return []RawResult{}, nil
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := c.limits.Wait(ctx, upstreamName); err != nil {
		return nil, fmt.Errorf("%w: rate limit wait: %w", ErrUpstream, err)
	}

	start := time.Now()
	ctx, span := tracing.StartHTTPSpan(ctx, upstreamName, http.MethodPost, c.cfg.Endpoint)
	results, err := c.do(ctx, q.Text)
	tracing.EndSpan(span, err)
	metrics.RecordUpstreamMetrics(upstreamName, metrics.StatusLabel(err), time.Since(start).Seconds())

	if err != nil {
		c.logger.Warn("Search failed", zap.String("query", q.Phrase), zap.Error(err))
		return nil, err
	}
	c.logger.Debug("Search results", zap.String("query", q.Phrase), zap.Int("count", len(results)))
	return results, nil
}

func (c *Client) do(ctx context.Context, q string) ([]RawResult, error) {
	body, err := json.Marshal(serperRequest{Q: q, GL: c.cfg.Country, HL: c.cfg.Language, Num: c.cfg.NumResults})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(c.cfg.KeyHeader, c.cfg.APIKey)
	tracing.InjectTraceparent(ctx, req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var sr serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrUpstream, err)
	}

	out := make([]RawResult, 0, len(sr.Organic))
	for _, o := range sr.Organic {
		link := strings.TrimSpace(o.Link)
		if link == "" {
			continue
		}
		out = append(out, RawResult{
			Title:    cleanText(o.Title),
			URL:      link,
			Snippet:  cleanText(o.Snippet),
			Position: o.Position,
		})
		if len(out) == c.cfg.NumResults {
			break
		}
	}
	return out, nil
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(textproc.HTMLToText(s)), " ")
}
