// Package cache memoises ranked keyword search results in two tiers: an
// in-process LRU and an optional shared Redis tier guarded by a circuit
// breaker. Concurrent misses for the same keyword are coalesced.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/resilience"
)

const (
	keyPrefix   = "search:"
	tierLocal   = "local"
	tierRemote  = "redis"
	defaultSize = 1024
)

// Remote is the shared tier. *redis.Client implements it; a missing key
// must be reported with an error for which redis.IsNilError is true.
type Remote interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type Options struct {
	LocalSize int
	Remote    Remote
	RemoteTTL time.Duration
	Breaker   *resilience.CircuitBreaker
	Metrics   *metrics.Metrics
}

type TierStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

type Stats struct {
	Local        TierStats  `json:"local"`
	LocalEntries int        `json:"local_entries"`
	Remote       *TierStats `json:"remote,omitempty"`
	BreakerState string     `json:"breaker_state,omitempty"`
}

type counters struct {
	hits   atomic.Int64
	misses atomic.Int64
}

func (c *counters) snapshot() TierStats {
	return TierStats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// QueryCache maps a normalised keyword to its full ranked result list.
// Returned slices are shared between callers and must not be modified.
type QueryCache struct {
	local   *lru.Cache[string, []ranker.ScoredDoc]
	opts    Options
	group   singleflight.Group
	logger  *slog.Logger
	localC  counters
	remoteC counters
}

func New(opts Options) (*QueryCache, error) {
	if opts.LocalSize <= 0 {
		opts.LocalSize = defaultSize
	}
	if opts.Remote != nil && opts.Breaker == nil {
		opts.Breaker = resilience.NewCircuitBreaker("redis-cache", resilience.BreakerConfig{})
	}
	local, err := lru.New[string, []ranker.ScoredDoc](opts.LocalSize)
	if err != nil {
		return nil, fmt.Errorf("creating local cache: %w", err)
	}
	return &QueryCache{
		local:  local,
		opts:   opts,
		logger: slog.Default().With("component", "query-cache"),
	}, nil
}

// GetOrCompute returns the cached result for keyword within scope or runs
// compute once, however many callers ask concurrently, and stores its
// result in both tiers. Scope identifies the corpus the result was computed
// against. The boolean reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	scope string,
	keyword string,
	compute func() ([]ranker.ScoredDoc, error),
) ([]ranker.ScoredDoc, bool, error) {
	key := c.buildKey(scope, keyword)
	if docs, ok := c.get(ctx, key); ok {
		return docs, true, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		if docs, ok := c.local.Peek(key); ok {
			return docs, nil
		}
		docs, err := compute()
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, docs)
		return docs, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]ranker.ScoredDoc), false, nil
}

func (c *QueryCache) get(ctx context.Context, key string) ([]ranker.ScoredDoc, bool) {
	if docs, ok := c.local.Get(key); ok {
		c.hit(&c.localC, tierLocal)
		return docs, true
	}
	c.miss(&c.localC, tierLocal)

	if c.opts.Remote == nil {
		return nil, false
	}
	data, err := resilience.Call(c.opts.Breaker, func() ([]byte, error) {
		data, err := c.opts.Remote.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			return nil, nil
		}
		return data, err
	})
	if err != nil {
		c.logger.Warn("remote cache get failed", "key", key, "error", err)
		c.miss(&c.remoteC, tierRemote)
		return nil, false
	}
	if data == nil {
		c.miss(&c.remoteC, tierRemote)
		return nil, false
	}
	var docs []ranker.ScoredDoc
	if err := json.Unmarshal(data, &docs); err != nil {
		c.logger.Error("remote cache entry corrupt", "key", key, "error", err)
		c.miss(&c.remoteC, tierRemote)
		return nil, false
	}
	c.hit(&c.remoteC, tierRemote)
	c.local.Add(key, docs)
	return docs, true
}

func (c *QueryCache) set(ctx context.Context, key string, docs []ranker.ScoredDoc) {
	c.local.Add(key, docs)
	if c.opts.Remote == nil {
		return
	}
	data, err := json.Marshal(docs)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.opts.Breaker.Execute(func() error {
		return c.opts.Remote.Set(ctx, key, data, c.opts.RemoteTTL)
	})
	if err != nil {
		c.logger.Warn("remote cache set failed", "key", key, "error", err)
	}
}

// Invalidate drops every local entry and every shared entry of every
// scope.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	purged := int64(c.local.Len())
	c.local.Purge()
	if c.opts.Remote == nil {
		c.logger.Info("cache invalidated", "local_entries", purged)
		return purged, nil
	}
	deleted, err := c.opts.Remote.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return purged + deleted, fmt.Errorf("invalidating remote cache: %w", err)
	}
	c.logger.Info("cache invalidated", "local_entries", purged, "remote_keys", deleted)
	return purged + deleted, nil
}

func (c *QueryCache) Stats() Stats {
	s := Stats{
		Local:        c.localC.snapshot(),
		LocalEntries: c.local.Len(),
	}
	if c.opts.Remote != nil {
		remote := c.remoteC.snapshot()
		s.Remote = &remote
		s.BreakerState = c.opts.Breaker.State().String()
	}
	return s
}

func (c *QueryCache) hit(ctr *counters, tier string) {
	ctr.hits.Add(1)
	if c.opts.Metrics != nil {
		c.opts.Metrics.CacheHitsTotal.WithLabelValues(tier).Inc()
	}
}

func (c *QueryCache) miss(ctr *counters, tier string) {
	ctr.misses.Add(1)
	if c.opts.Metrics != nil {
		c.opts.Metrics.CacheMissesTotal.WithLabelValues(tier).Inc()
	}
}

func (c *QueryCache) buildKey(scope, keyword string) string {
	hash := sha256.Sum256([]byte(normalizeKeyword(keyword)))
	if scope == "" {
		return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
	}
	return fmt.Sprintf("%s%s:%x", keyPrefix, scope, hash[:16])
}

// normalizeKeyword maps keywords that match the same documents to the same
// string: distinct tokens, sorted.
func normalizeKeyword(keyword string) string {
	terms := tokenizer.Terms(keyword)
	sort.Strings(terms)
	return strings.Join(terms, ",")
}
