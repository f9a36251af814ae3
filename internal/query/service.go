// Package query answers lookups, keyword searches and category listings
// over a corpus loaded once at startup. A Service starts in Loading, moves
// to Ready when Load succeeds or to Failed when it does not, and rejects
// every query until it is Ready.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/tracing"
)

type State int32

const (
	StateLoading State = iota
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is one keyword search hit.
type Result struct {
	Document store.Document `json:"document"`
	Score    float64        `json:"score"`
}

// SearchResponse carries the hits of one search with the total number of
// matching documents before the limit was applied.
type SearchResponse struct {
	Query     string   `json:"query"`
	TotalHits int      `json:"total_hits"`
	CacheHit  bool     `json:"cache_hit"`
	Results   []Result `json:"results"`
}

type CategoryInfo struct {
	Name      string `json:"name"`
	Documents int    `json:"documents"`
}

type Options struct {
	Load store.LoadOptions
	// SearchLimit caps SearchKeyword results. Zero returns every match.
	SearchLimit int
	Cache       *cache.QueryCache
	Metrics     *metrics.Metrics
	Recorder    analytics.Recorder
	// TraceLoad logs the span tree of the load phase.
	TraceLoad bool
}

type Service struct {
	opts    Options
	engine  *indexer.Engine
	state   atomic.Int32
	started atomic.Bool
	ready   chan struct{}
	corpus  atomic.Pointer[store.Store]
	loadErr error
	loaded  time.Time
	loadDur time.Duration
	logger  *slog.Logger
}

func New(opts Options) *Service {
	if opts.Recorder == nil {
		opts.Recorder = analytics.Discard
	}
	s := &Service{
		opts:   opts,
		engine: indexer.NewEngine(),
		ready:  make(chan struct{}),
		logger: slog.Default().With("component", "query-service"),
	}
	s.setState(StateLoading)
	return s
}

// Load scans root, builds the index and makes the service Ready. It may be
// called once; a failure leaves the service Failed for good.
func (s *Service) Load(ctx context.Context, root string) error {
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("load %s: service already %s", root, s.State())
	}
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "corpus.load")
	span.SetAttr("root", root)
	defer func() {
		span.End()
		if s.opts.TraceLoad {
			span.Log(s.logger)
		}
	}()

	scanCtx, scan := tracing.StartChildSpan(ctx, "store.scan")
	st, err := store.Load(scanCtx, root, s.opts.Load)
	if err != nil {
		scan.SetError(err)
		scan.End()
		span.SetError(err)
		return s.fail(err)
	}
	scan.SetAttr("documents", st.Len())
	scan.SetAttr("skipped", len(st.Skipped()))
	scan.End()

	_, build := tracing.StartChildSpan(ctx, "index.build")
	idx := s.engine.Build(slices.Collect(st.All()))
	build.SetAttr("terms", idx.Terms)
	build.End()

	s.corpus.Store(st)
	s.loaded = time.Now()
	s.loadDur = time.Since(start)
	s.recordLoad(st, idx)
	s.setState(StateReady)
	close(s.ready)

	s.logger.Info("corpus ready",
		"root", root,
		"documents", st.Len(),
		"skipped", len(st.Skipped()),
		"categories", len(st.Categories()),
		"terms", idx.Terms,
		"fingerprint", st.Fingerprint(),
		"duration_ms", s.loadDur.Milliseconds(),
	)
	return nil
}

func (s *Service) fail(err error) error {
	s.loadErr = err
	s.setState(StateFailed)
	s.logger.Error("corpus load failed", "error", err)
	return err
}

func (s *Service) State() State {
	return State(s.state.Load())
}

// Ready is closed when the service enters the Ready state. It is never
// closed if loading fails.
func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// Err returns the load error once the service is Failed.
func (s *Service) Err() error {
	if s.State() != StateFailed {
		return nil
	}
	return s.loadErr
}

// FindByID returns the document with the given id.
func (s *Service) FindByID(ctx context.Context, id string) (doc store.Document, err error) {
	start := time.Now()
	defer func() {
		s.observe(ctx, analytics.OpFind, id, start, boolToInt(err == nil), false, err)
	}()

	st, err := s.current()
	if err != nil {
		return store.Document{}, err
	}
	return st.Get(id)
}

// SearchKeyword returns the documents containing every token of keyword,
// best match first, capped at the configured search limit.
func (s *Service) SearchKeyword(ctx context.Context, keyword string) ([]Result, error) {
	resp, err := s.Search(ctx, keyword, s.opts.SearchLimit)
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Search is SearchKeyword with an explicit limit; limit <= 0 returns every
// match. An empty or whitespace-only keyword is rejected without touching
// the index.
func (s *Service) Search(ctx context.Context, keyword string, limit int) (resp SearchResponse, err error) {
	start := time.Now()
	defer func() {
		s.observe(ctx, analytics.OpSearch, keyword, start, resp.TotalHits, resp.CacheHit, err)
		if err == nil && s.opts.Metrics != nil {
			s.opts.Metrics.SearchResults.Observe(float64(resp.TotalHits))
		}
	}()

	if strings.TrimSpace(keyword) == "" {
		return SearchResponse{}, &apperrors.InvalidQueryError{Query: keyword, Reason: "keyword must not be empty"}
	}
	st, err := s.current()
	if err != nil {
		return SearchResponse{}, err
	}

	ranked, hit, err := s.rank(ctx, st, keyword)
	if err != nil {
		return SearchResponse{}, err
	}
	total := len(ranked)
	if limit > 0 && total > limit {
		ranked = ranked[:limit]
	}
	resp = SearchResponse{
		Query:     keyword,
		TotalHits: total,
		CacheHit:  hit,
		Results:   make([]Result, 0, len(ranked)),
	}
	for _, r := range ranked {
		doc, err := st.Get(r.DocID)
		if err != nil {
			s.logger.Error("indexed document missing from store", "id", r.DocID)
			continue
		}
		resp.Results = append(resp.Results, Result{Document: doc, Score: r.Score})
	}
	return resp, nil
}

func (s *Service) rank(ctx context.Context, st *store.Store, keyword string) ([]ranker.ScoredDoc, bool, error) {
	compute := func() ([]ranker.ScoredDoc, error) {
		return s.engine.Rank(keyword, 0), nil
	}
	if s.opts.Cache == nil {
		docs, err := compute()
		return docs, false, err
	}
	return s.opts.Cache.GetOrCompute(ctx, st.Fingerprint(), keyword, compute)
}

// ListByCategory returns the documents of category sorted by title, then
// id. An empty category lists every document. Unknown categories yield an
// empty list.
func (s *Service) ListByCategory(ctx context.Context, category string) (docs []store.Document, err error) {
	start := time.Now()
	defer func() {
		s.observe(ctx, analytics.OpList, category, start, len(docs), false, err)
	}()

	st, err := s.current()
	if err != nil {
		return nil, err
	}
	docs = slices.Collect(st.List(category))
	if docs == nil {
		docs = []store.Document{}
	}
	return docs, nil
}

// ListCategories returns every category with its document count, by name.
func (s *Service) ListCategories(ctx context.Context) ([]CategoryInfo, error) {
	st, err := s.current()
	if err != nil {
		return nil, err
	}
	counts := st.CategoryCounts()
	out := make([]CategoryInfo, 0, len(counts))
	for _, name := range st.Categories() {
		out = append(out, CategoryInfo{Name: name, Documents: counts[name]})
	}
	return out, nil
}

// Stats describes the service. It is valid in every state; corpus fields
// stay zero until Ready.
type Stats struct {
	State        State                    `json:"state"`
	Root         string                   `json:"root,omitempty"`
	Documents    int                      `json:"documents"`
	Categories   int                      `json:"categories"`
	Skipped      map[store.SkipReason]int `json:"skipped,omitempty"`
	Terms        int                      `json:"terms"`
	AvgDocLength float64                  `json:"avg_doc_length"`
	Fingerprint  string                   `json:"fingerprint,omitempty"`
	LoadedAt     time.Time                `json:"loaded_at,omitzero"`
	LoadDuration string                   `json:"load_duration,omitempty"`
	Error        string                   `json:"error,omitempty"`
	Cache        *cache.Stats             `json:"cache,omitempty"`
}

func (s *Service) Stats(context.Context) Stats {
	out := Stats{State: s.State()}
	if s.opts.Cache != nil {
		cs := s.opts.Cache.Stats()
		out.Cache = &cs
	}
	switch out.State {
	case StateFailed:
		out.Error = s.loadErr.Error()
		return out
	case StateLoading:
		return out
	}
	st := s.corpus.Load()
	idx := s.engine.Stats()
	out.Root = st.Root()
	out.Documents = st.Len()
	out.Categories = len(st.Categories())
	out.Terms = idx.Terms
	out.AvgDocLength = idx.AvgDocLength
	out.Fingerprint = st.Fingerprint()
	out.LoadedAt = s.loaded
	out.LoadDuration = s.loadDur.String()
	if skipped := st.Skipped(); len(skipped) > 0 {
		out.Skipped = make(map[store.SkipReason]int)
		for _, sk := range skipped {
			out.Skipped[sk.Reason]++
		}
	}
	return out
}

func (s *Service) current() (*store.Store, error) {
	if s.State() != StateReady {
		return nil, fmt.Errorf("%w: state %s", apperrors.ErrNotReady, s.State())
	}
	return s.corpus.Load(), nil
}

// HealthCheck reports the corpus component: down until Ready.
func (s *Service) HealthCheck(context.Context) health.ComponentHealth {
	switch s.State() {
	case StateReady:
		st := s.corpus.Load()
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d documents", st.Len())}
	case StateFailed:
		return health.ComponentHealth{Status: health.StatusDown, Message: s.loadErr.Error()}
	default:
		return health.ComponentHealth{Status: health.StatusDown, Message: "corpus loading"}
	}
}

func (s *Service) setState(st State) {
	s.state.Store(int32(st))
	if s.opts.Metrics != nil {
		s.opts.Metrics.ServiceState.Set(float64(st))
	}
}

func (s *Service) recordLoad(st *store.Store, idx indexer.Stats) {
	m := s.opts.Metrics
	if m == nil {
		return
	}
	m.DocumentsLoaded.Set(float64(st.Len()))
	m.IndexTerms.Set(float64(idx.Terms))
	m.LoadDuration.Set(s.loadDur.Seconds())
	skipped := make(map[store.SkipReason]int)
	for _, sk := range st.Skipped() {
		skipped[sk.Reason]++
	}
	for _, reason := range []store.SkipReason{
		store.SkipUnreadable, store.SkipEmpty, store.SkipTooLarge, store.SkipDuplicateID, store.SkipInvalidUTF8,
	} {
		m.FilesSkipped.WithLabelValues(string(reason)).Set(float64(skipped[reason]))
	}
}

func (s *Service) observe(ctx context.Context, op analytics.Operation, query string, start time.Time, hits int, cacheHit bool, err error) {
	elapsed := time.Since(start)
	outcome := outcomeOf(err, hits)
	if m := s.opts.Metrics; m != nil {
		m.QueriesTotal.WithLabelValues(string(op), string(outcome)).Inc()
		m.QueryLatency.WithLabelValues(string(op)).Observe(elapsed.Seconds())
	}
	if outcome == analytics.OutcomeError {
		logger.FromContext(ctx).Error("query failed", "operation", op, "query", query, "error", err)
	}
	s.opts.Recorder.Record(analytics.QueryEvent{
		Operation: op,
		Query:     query,
		Outcome:   outcome,
		Hits:      hits,
		LatencyUs: elapsed.Microseconds(),
		CacheHit:  cacheHit,
		RequestID: logger.RequestID(ctx),
		Timestamp: start.UTC(),
	})
}

func outcomeOf(err error, hits int) analytics.Outcome {
	switch {
	case err == nil && hits == 0:
		return analytics.OutcomeEmpty
	case err == nil:
		return analytics.OutcomeOK
	case errors.Is(err, apperrors.ErrNotReady):
		return analytics.OutcomeNotReady
	case apperrors.IsNotFound(err):
		return analytics.OutcomeNotFound
	case apperrors.IsInvalidQuery(err):
		return analytics.OutcomeInvalid
	default:
		return analytics.OutcomeError
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
