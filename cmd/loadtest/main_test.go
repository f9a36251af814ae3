package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLoadTest(t *testing.T) {
	var served atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := served.Add(1)
		if r.URL.Query().Get("q") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if n%2 == 0 {
			_, _ = w.Write([]byte(`{"cache_hit":true,"results":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"cache_hit":false,"results":[]}`))
	}))
	defer srv.Close()

	stats, err := runLoadTest(context.Background(), Config{
		BaseURL:     srv.URL,
		Concurrency: 4,
		Duration:    100 * time.Millisecond,
		Limit:       5,
		Queries:     []string{"singleton", "bean scopes"},
	})
	require.NoError(t, err)

	r := buildReport(stats, 100*time.Millisecond)
	assert.Positive(t, r.Total)
	assert.Equal(t, r.Total, r.Success+r.Errors)
	assert.Positive(t, r.CacheHits)
	assert.Positive(t, r.StatusCodes[http.StatusOK])
	assert.LessOrEqual(t, r.P50, r.P99)

	var buf bytes.Buffer
	printReport(&buf, stats, 100*time.Millisecond)
	assert.Contains(t, buf.String(), "Cache Hit Rate")
}

func TestDiscoverQueries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/documents", r.URL.Path)
		_, _ = w.Write([]byte(`{"count":3,"documents":[{"title":"Singleton Pattern"},{"title":"singleton pattern"},{"title":"Bean Scopes"}]}`))
	}))
	defer srv.Close()

	queries, err := discoverQueries(context.Background(), srv.Client(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []string{"singleton pattern", "bean scopes"}, queries)
}

func TestPercentile(t *testing.T) {
	ls := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(5), percentile(ls, 50))
	assert.Equal(t, time.Duration(10), percentile(ls, 99))
	assert.Equal(t, time.Duration(0), percentile(nil, 50))
}

func TestPrintReport_NoRequests(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, NewStats(), time.Second)
	assert.Contains(t, buf.String(), "no requests completed")
}
