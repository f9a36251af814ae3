package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/kafka"
)

const (
	latencyWindow = 10000
	topSize       = 10
	// trackedKeys bounds the distinct queries, documents and categories
	// counted; the least recently seen key is evicted first.
	trackedKeys = 10000
)

type AggregatedStats struct {
	TotalQueries      int64               `json:"total_queries"`
	ByOperation       map[Operation]int64 `json:"by_operation"`
	ByOutcome         map[Outcome]int64   `json:"by_outcome"`
	CacheHits         int64               `json:"cache_hits"`
	CacheMisses       int64               `json:"cache_misses"`
	AvgLatencyUs      float64             `json:"avg_latency_us"`
	P50LatencyUs      int64               `json:"p50_latency_us"`
	P95LatencyUs      int64               `json:"p95_latency_us"`
	P99LatencyUs      int64               `json:"p99_latency_us"`
	TopSearches       []QueryCount        `json:"top_searches"`
	ZeroResultQueries []QueryCount        `json:"zero_result_queries"`
	TopDocuments      []QueryCount        `json:"top_documents"`
	TopCategories     []QueryCount        `json:"top_categories"`
	QueriesPerMinute  float64             `json:"queries_per_minute"`
	Since             time.Time           `json:"since"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator keeps running totals of query events. Latency percentiles are
// computed over the most recent events only.
type Aggregator struct {
	mu          sync.Mutex
	total       int64
	byOperation map[Operation]int64
	byOutcome   map[Outcome]int64
	cacheHits   int64
	cacheMisses int64
	latencies   []int64
	next        int
	searches    *counter
	zeroResults *counter
	documents   *counter
	categories  *counter
	start       time.Time
	now         func() time.Time
	logger      *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		byOperation: make(map[Operation]int64),
		byOutcome:   make(map[Outcome]int64),
		latencies:   make([]int64, 0, 1024),
		searches:    newCounter(trackedKeys),
		zeroResults: newCounter(trackedKeys),
		documents:   newCounter(trackedKeys),
		categories:  newCounter(trackedKeys),
		start:       time.Now(),
		now:         time.Now,
		logger:      slog.Default().With("component", "analytics-aggregator"),
	}
}

func (a *Aggregator) Record(e QueryEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	a.byOperation[e.Operation]++
	a.byOutcome[e.Outcome]++
	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, e.LatencyUs)
	} else {
		a.latencies[a.next] = e.LatencyUs
		a.next = (a.next + 1) % latencyWindow
	}

	query := strings.ToLower(strings.TrimSpace(e.Query))
	switch e.Operation {
	case OpSearch:
		if e.Outcome != OutcomeOK && e.Outcome != OutcomeEmpty {
			return
		}
		if e.CacheHit {
			a.cacheHits++
		} else {
			a.cacheMisses++
		}
		a.searches.inc(query)
		if e.Outcome == OutcomeEmpty {
			a.zeroResults.inc(query)
		}
	case OpFind:
		if e.Outcome == OutcomeOK {
			a.documents.inc(e.Query)
		}
	case OpList:
		if e.Query != "" {
			a.categories.inc(e.Query)
		}
	}
}

// HandleEvent feeds events consumed from Kafka into agg. Undecodable
// messages are logged and acknowledged.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(_ context.Context, _ []byte, value []byte) error {
		event, err := kafka.DecodeJSON[QueryEvent](value)
		if err != nil {
			agg.logger.Warn("dropping undecodable analytics event", "error", err)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

// ServeHTTP answers with the current AggregatedStats as JSON.
func (a *Aggregator) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(a.Stats()); err != nil {
		a.logger.Error("failed to write analytics response", "error", err)
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := AggregatedStats{
		TotalQueries:      a.total,
		ByOperation:       make(map[Operation]int64, len(a.byOperation)),
		ByOutcome:         make(map[Outcome]int64, len(a.byOutcome)),
		CacheHits:         a.cacheHits,
		CacheMisses:       a.cacheMisses,
		TopSearches:       a.searches.top(topSize),
		ZeroResultQueries: a.zeroResults.top(topSize),
		TopDocuments:      a.documents.top(topSize),
		TopCategories:     a.categories.top(topSize),
		Since:             a.start,
	}
	for k, v := range a.byOperation {
		stats.ByOperation[k] = v
	}
	for k, v := range a.byOutcome {
		stats.ByOutcome[k] = v
	}
	if len(a.latencies) > 0 {
		sorted := append([]int64(nil), a.latencies...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyUs = float64(sum) / float64(len(sorted))
		stats.P50LatencyUs = percentile(sorted, 50)
		stats.P95LatencyUs = percentile(sorted, 95)
		stats.P99LatencyUs = percentile(sorted, 99)
	}
	if elapsed := a.now().Sub(a.start).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(a.total) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := pct * len(sorted) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// counter counts occurrences of at most size distinct keys.
type counter struct {
	counts *lru.Cache[string, int64]
}

func newCounter(size int) *counter {
	counts, err := lru.New[string, int64](size)
	if err != nil {
		panic(err)
	}
	return &counter{counts: counts}
}

func (c *counter) inc(key string) {
	n, _ := c.counts.Get(key)
	c.counts.Add(key, n+1)
}

// top returns the n largest counts, ties ordered by query.
func (c *counter) top(n int) []QueryCount {
	keys := c.counts.Keys()
	result := make([]QueryCount, 0, len(keys))
	for _, query := range keys {
		if count, ok := c.counts.Peek(query); ok {
			result = append(result, QueryCount{Query: query, Count: count})
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
