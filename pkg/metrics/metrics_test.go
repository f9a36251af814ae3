package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestNew_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()

	a.QueriesTotal.WithLabelValues("search", "ok").Inc()
	assert.Contains(t, scrape(t, a), `corpus_queries_total{operation="search",result="ok"} 1`)
	assert.NotContains(t, scrape(t, b), `corpus_queries_total{operation="search",result="ok"}`)
}

func TestHandler_ExposesCorpusMetrics(t *testing.T) {
	m := New()
	m.DocumentsLoaded.Set(42)
	m.CacheHitsTotal.WithLabelValues("local").Add(3)

	body := scrape(t, m)
	assert.Contains(t, body, "corpus_documents_loaded 42")
	assert.Contains(t, body, `corpus_cache_hits_total{tier="local"} 3`)
	assert.Contains(t, body, "go_goroutines")
}
