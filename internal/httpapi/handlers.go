// Package httpapi serves the analysis, single-phrase search and citation
// reason endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/linkscout/citefinder/internal/pipeline"
	"github.com/linkscout/citefinder/internal/ranking"
	"github.com/linkscout/citefinder/internal/reason"
)

// Analyzer is implemented by *pipeline.Pipeline
type Analyzer interface {
	Run(ctx context.Context, text string) (*pipeline.Result, error)
	SearchOne(ctx context.Context, phrase, text string) ([]ranking.ScoredLink, error)
}

// Explainer is implemented by *reason.Generator
type Explainer interface {
	Explain(ctx context.Context, url, phrase, sentence string) reason.Reason
}

// Handler serves the /api routes
type Handler struct {
	analyzer  Analyzer
	explainer Explainer
	logger    *zap.Logger
}

func NewHandler(a Analyzer, e Explainer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{analyzer: a, explainer: e, logger: logger}
}

// RegisterRoutes registers the API routes on mux, each wrapped by mw
func (h *Handler) RegisterRoutes(mux *http.ServeMux, mw func(route string, next http.Handler) http.Handler) {
	if mw == nil {
		mw = func(_ string, next http.Handler) http.Handler { return next }
	}
	mux.Handle("/api/ai", mw("ai", http.HandlerFunc(h.handleAnalyze)))
	mux.Handle("/api/search", mw("search", http.HandlerFunc(h.handleSearch)))
	mux.Handle("/api/reason", mw("reason", http.HandlerFunc(h.handleReason)))
}

type analyzeRequest struct {
	Text string `json:"text"`
}

type linkView struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type keywordView struct {
	Keyword string     `json:"keyword"`
	Options []linkView `json:"options"`
}

type analyzeResponse struct {
	Original string        `json:"original"`
	Keywords []keywordView `json:"keywords"`
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req analyzeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text required")
		return
	}

	res, err := h.analyzer.Run(r.Context(), req.Text)
	if err != nil {
		h.logger.Error("Analysis failed",
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "phrase extraction failed")
		return
	}

	resp := analyzeResponse{Original: res.Original, Keywords: make([]keywordView, 0, len(res.Keywords))}
	for _, sel := range res.Keywords {
		resp.Keywords = append(resp.Keywords, keywordView{Keyword: sel.Phrase, Options: linkViews(sel.Options)})
	}
	writeJSON(w, http.StatusOK, resp)
}

type searchRequest struct {
	KW   string `json:"kw"`
	Text string `json:"text"`
}

type searchResponse struct {
	Links []linkView `json:"links"`
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req searchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.KW) == "" {
		writeError(w, http.StatusBadRequest, "kw required")
		return
	}

	links, err := h.analyzer.SearchOne(r.Context(), req.KW, req.Text)
	if err != nil {
		h.logger.Warn("Search failed",
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.String("kw", req.KW),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Links: linkViews(links)})
}

type reasonRequest struct {
	URL      string `json:"url"`
	Phrase   string `json:"phrase"`
	Sentence string `json:"sentence"`
}

type reasonResponse struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleReason(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req reasonRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" || strings.TrimSpace(req.Phrase) == "" {
		writeError(w, http.StatusBadRequest, "url & phrase required")
		return
	}

	out := h.explainer.Explain(r.Context(), req.URL, req.Phrase, req.Sentence)
	if out.Text == "" {
		out.Text = reason.Fallback
	}
	writeJSON(w, http.StatusOK, reasonResponse{Reason: out.Text})
}

func linkViews(links []ranking.ScoredLink) []linkView {
	out := make([]linkView, 0, len(links))
	for _, l := range links {
		out = append(out, linkView{URL: l.URL, Title: l.Title})
	}
	return out
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodPost {
		return true
	}
	w.Header().Set("Allow", http.MethodPost)
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

// decodeBody writes the 4xx response itself when it returns false
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return false
	}
	writeError(w, http.StatusBadRequest, "invalid JSON")
	return false
}

// writeJSON writes a JSON response with status and content-type.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
