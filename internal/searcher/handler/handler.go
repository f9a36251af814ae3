// Package handler serves the corpus query API over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/query"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/store"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/resilience"
)

// Corpus is the query surface the handler serves. *query.Service
// implements it.
type Corpus interface {
	FindByID(ctx context.Context, id string) (store.Document, error)
	Search(ctx context.Context, keyword string, limit int) (query.SearchResponse, error)
	ListByCategory(ctx context.Context, category string) ([]store.Document, error)
	ListCategories(ctx context.Context) ([]query.CategoryInfo, error)
	Stats(ctx context.Context) query.Stats
}

type Handler struct {
	corpus       Corpus
	cache        *cache.QueryCache
	defaultLimit int
	maxResults   int
	queryTimeout time.Duration
	logger       *slog.Logger
}

// New creates a Handler. queryCache may be nil when caching is disabled.
func New(corpus Corpus, queryCache *cache.QueryCache, cfg config.SearchConfig) *Handler {
	return &Handler{
		corpus:       corpus,
		cache:        queryCache,
		defaultLimit: cfg.DefaultLimit,
		maxResults:   cfg.MaxResults,
		queryTimeout: cfg.QueryTimeout,
		logger:       slog.Default().With("component", "corpus-handler"),
	}
}

// Register adds the query API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/documents/{id...}", h.GetDocument)
	mux.HandleFunc("GET /api/v1/documents", h.ListDocuments)
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/categories", h.Categories)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

type searchHit struct {
	store.Summary
	Score float64 `json:"score"`
}

type searchResponse struct {
	Query     string      `json:"query"`
	TotalHits int         `json:"total_hits"`
	Returned  int         `json:"returned"`
	CacheHit  bool        `json:"cache_hit"`
	Results   []searchHit `json:"results"`
}

type listResponse struct {
	Category  string          `json:"category,omitempty"`
	Count     int             `json:"count"`
	Documents []store.Summary `json:"documents"`
}

// GetDocument serves GET /api/v1/documents/{id...}. Ids contain slashes.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	doc, err := h.corpus.FindByID(r.Context(), id)
	if err != nil {
		h.writeQueryError(w, r, err, "id", id)
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

// ListDocuments serves GET /api/v1/documents?category=.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	docs, err := h.corpus.ListByCategory(r.Context(), category)
	if err != nil {
		h.writeQueryError(w, r, err, "category", category)
		return
	}
	resp := listResponse{
		Category:  category,
		Count:     len(docs),
		Documents: make([]store.Summary, 0, len(docs)),
	}
	for _, d := range docs {
		resp.Documents = append(resp.Documents, d.Summary())
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Search serves GET /api/v1/search?q=&limit=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	q := r.URL.Query().Get("q")

	limit := h.defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.writeQueryError(w, r, &apperrors.InvalidQueryError{Query: raw, Reason: "limit must be a positive integer"}, "query", q)
			return
		}
		limit = parsed
	}
	if h.maxResults > 0 && limit > h.maxResults {
		limit = h.maxResults
	}

	result, err := resilience.WithTimeout(ctx, h.queryTimeout, "search", func(ctx context.Context) (query.SearchResponse, error) {
		return h.corpus.Search(ctx, q, limit)
	})
	if err != nil {
		h.writeQueryError(w, r, err, "query", q)
		return
	}

	resp := searchResponse{
		Query:     result.Query,
		TotalHits: result.TotalHits,
		Returned:  len(result.Results),
		CacheHit:  result.CacheHit,
		Results:   make([]searchHit, 0, len(result.Results)),
	}
	for _, res := range result.Results {
		resp.Results = append(resp.Results, searchHit{Summary: res.Document.Summary(), Score: res.Score})
	}

	logger.FromContext(ctx).Debug("search completed",
		"query", q,
		"total_hits", resp.TotalHits,
		"returned", resp.Returned,
		"cache_hit", resp.CacheHit,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, resp)
}

// Categories serves GET /api/v1/categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.corpus.ListCategories(r.Context())
	if err != nil {
		h.writeQueryError(w, r, err, "", "")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"categories": cats})
}

// Stats serves GET /api/v1/stats. It answers in every service state.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.corpus.Stats(r.Context()))
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	stats := h.cache.Stats()
	lookups := stats.Local.Hits + stats.Local.Misses
	var hitRate float64
	if lookups > 0 {
		hitRate = float64(stats.Local.Hits) / float64(lookups)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":         "enabled",
		"stats":          stats,
		"local_hit_rate": hitRate,
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeQueryError(w, r, apperrors.New(apperrors.ErrInternal, http.StatusServiceUnavailable, "caching is disabled"), "", "")
		return
	}
	n, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.writeQueryError(w, r, fmt.Errorf("%w: %w", apperrors.Newf(apperrors.ErrInternal, http.StatusBadGateway,
			"cache invalidation failed after removing %d entries", n), err), "", "")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "removed": n})
}

// writeQueryError maps err onto its status code and echoes the offending
// input back under field.
func (h *Handler) writeQueryError(w http.ResponseWriter, r *http.Request, err error, field, value string) {
	status := apperrors.HTTPStatusCode(err)
	body := map[string]string{"error": publicMessage(err, status)}
	if field != "" {
		body[field] = value
	}
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logger.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	}
	if errors.Is(err, apperrors.ErrNotReady) {
		w.Header().Set("Retry-After", "1")
	}
	h.writeJSON(w, status, body)
}

func publicMessage(err error, status int) string {
	var iq *apperrors.InvalidQueryError
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &iq):
		return iq.Reason
	case errors.As(err, &appErr):
		return appErr.Message
	case errors.Is(err, apperrors.ErrDocumentNotFound):
		return apperrors.ErrDocumentNotFound.Error()
	case errors.Is(err, apperrors.ErrNotReady):
		return apperrors.ErrNotReady.Error()
	case errors.Is(err, apperrors.ErrTimeout):
		return apperrors.ErrTimeout.Error()
	default:
		return http.StatusText(status)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}
