// Command loadtest drives concurrent keyword searches against a running
// corpus server and reports throughput, latency percentiles, cache hit
// rate and status codes.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Limit       int
	Queries     []string
}

type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	cacheHits     atomic.Int64

	mu          sync.Mutex
	latencies   []time.Duration
	statusCodes map[int]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]int64),
	}
}

func (s *Stats) RecordRequest(duration time.Duration, statusCode int, cacheHit bool, err error) {
	s.totalRequests.Add(1)
	if err != nil {
		s.errorCount.Add(1)
		return
	}
	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}
	if cacheHit {
		s.cacheHits.Add(1)
	}

	s.mu.Lock()
	s.latencies = append(s.latencies, duration)
	s.statusCodes[statusCode]++
	s.mu.Unlock()
}

var defaultQueries = []string{
	"singleton",
	"factory method",
	"dependency injection",
	"garbage collection",
	"bean scopes",
	"thread pool",
	"hash map",
	"stream api",
	"transaction isolation",
	"nonexistent keyword",
}

func main() {
	var cfg Config
	var discover bool

	cmd := &cobra.Command{
		Use:           "loadtest",
		Short:         "Load test the corpus search endpoint",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Concurrency < 1 {
				return fmt.Errorf("concurrency must be at least 1")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			if discover {
				found, err := discoverQueries(ctx, http.DefaultClient, cfg.BaseURL)
				if err != nil {
					return err
				}
				cfg.Queries = append(cfg.Queries, found...)
			}
			if len(cfg.Queries) == 0 {
				cfg.Queries = defaultQueries
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "=== Corpus Search Load Test ===")
			fmt.Fprintf(out, "Target:      %s\n", cfg.BaseURL)
			fmt.Fprintf(out, "Concurrency: %d\n", cfg.Concurrency)
			fmt.Fprintf(out, "Duration:    %s\n", cfg.Duration)
			fmt.Fprintf(out, "Queries:     %d unique\n\n", len(cfg.Queries))

			stats, err := runLoadTest(ctx, cfg)
			if err != nil {
				return err
			}
			printReport(out, stats, cfg.Duration)
			return nil
		},
	}
	cmd.Flags().StringVar(&cfg.BaseURL, "url", "http://localhost:8080", "base URL of the corpus server")
	cmd.Flags().IntVarP(&cfg.Concurrency, "concurrency", "c", 10, "number of concurrent workers")
	cmd.Flags().DurationVarP(&cfg.Duration, "duration", "d", 30*time.Second, "test duration")
	cmd.Flags().IntVar(&cfg.Limit, "limit", 10, "results per search")
	cmd.Flags().StringSliceVarP(&cfg.Queries, "query", "q", nil, "keyword to search (repeatable)")
	cmd.Flags().BoolVar(&discover, "discover", false, "add the titles of the served documents as queries")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "loadtest: %v\n", err)
		os.Exit(1)
	}
}

// runLoadTest runs cfg.Concurrency workers until cfg.Duration elapses or
// ctx is cancelled. Request failures are counted, not returned.
func runLoadTest(ctx context.Context, cfg Config) (*Stats, error) {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	defer client.CloseIdleConnections()

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Concurrency; w++ {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				q := cfg.Queries[i%len(cfg.Queries)]
				target := fmt.Sprintf("%s/api/v1/search?q=%s&limit=%d", cfg.BaseURL, url.QueryEscape(q), cfg.Limit)
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
				if err != nil {
					return fmt.Errorf("building request: %w", err)
				}

				start := time.Now()
				resp, err := client.Do(req)
				duration := time.Since(start)
				if err != nil {
					if ctx.Err() == nil {
						stats.RecordRequest(duration, 0, false, err)
					}
					continue
				}
				var body struct {
					CacheHit bool `json:"cache_hit"`
				}
				_ = json.NewDecoder(resp.Body).Decode(&body)
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.RecordRequest(duration, resp.StatusCode, body.CacheHit, nil)
			}
			return nil
		})
	}
	return stats, g.Wait()
}

// discoverQueries lists the served documents and uses their titles as
// search keywords.
func discoverQueries(ctx context.Context, client *http.Client, baseURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/v1/documents", nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing documents: status %d", resp.StatusCode)
	}
	var list struct {
		Documents []struct {
			Title string `json:"title"`
		} `json:"documents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decoding document list: %w", err)
	}
	var queries []string
	for _, d := range list.Documents {
		if t := strings.ToLower(strings.TrimSpace(d.Title)); t != "" && !slices.Contains(queries, t) {
			queries = append(queries, t)
		}
	}
	return queries, nil
}

type Report struct {
	Total, Success, Errors, CacheHits int64
	RPS                               float64
	Min, Avg, P50, P90, P95, P99, Max time.Duration
	StdDev                            time.Duration
	StatusCodes                       map[int]int64
}

func buildReport(stats *Stats, duration time.Duration) Report {
	r := Report{
		Total:     stats.totalRequests.Load(),
		Success:   stats.successCount.Load(),
		Errors:    stats.errorCount.Load(),
		CacheHits: stats.cacheHits.Load(),
	}
	if duration > 0 {
		r.RPS = float64(r.Total) / duration.Seconds()
	}

	stats.mu.Lock()
	latencies := slices.Clone(stats.latencies)
	r.StatusCodes = make(map[int]int64, len(stats.statusCodes))
	for code, n := range stats.statusCodes {
		r.StatusCodes[code] = n
	}
	stats.mu.Unlock()

	if len(latencies) == 0 {
		return r
	}
	slices.Sort(latencies)
	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	r.Avg = sum / time.Duration(len(latencies))
	r.Min = latencies[0]
	r.Max = latencies[len(latencies)-1]
	r.P50 = percentile(latencies, 50)
	r.P90 = percentile(latencies, 90)
	r.P95 = percentile(latencies, 95)
	r.P99 = percentile(latencies, 99)

	var sumSquared float64
	for _, l := range latencies {
		diff := float64(l - r.Avg)
		sumSquared += diff * diff
	}
	r.StdDev = time.Duration(math.Sqrt(sumSquared / float64(len(latencies))))
	return r
}

func printReport(w io.Writer, stats *Stats, duration time.Duration) {
	r := buildReport(stats, duration)

	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", r.Total)
	fmt.Fprintf(w, "Successful:      %d\n", r.Success)
	fmt.Fprintf(w, "Errors:          %d\n", r.Errors)
	if r.Total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(r.Errors)/float64(r.Total)*100)
		fmt.Fprintf(w, "Cache Hit Rate:  %.2f%%\n", float64(r.CacheHits)/float64(r.Total)*100)
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", r.RPS)
	}

	if r.Max > 0 {
		fmt.Fprintln(w, "\n=== Latency ===")
		fmt.Fprintf(w, "Min:    %s\n", r.Min)
		fmt.Fprintf(w, "Avg:    %s\n", r.Avg)
		fmt.Fprintf(w, "P50:    %s\n", r.P50)
		fmt.Fprintf(w, "P90:    %s\n", r.P90)
		fmt.Fprintf(w, "P95:    %s\n", r.P95)
		fmt.Fprintf(w, "P99:    %s\n", r.P99)
		fmt.Fprintf(w, "Max:    %s\n", r.Max)
		fmt.Fprintf(w, "StdDev: %s\n", r.StdDev)
	}

	fmt.Fprintln(w, "\n=== Status Codes ===")
	codes := make([]int, 0, len(r.StatusCodes))
	for code := range r.StatusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, r.StatusCodes[code])
	}
	if r.Total == 0 {
		fmt.Fprintln(w, "\nWARNING: no requests completed. Is the corpus server running?")
	}
}

func percentile(sorted []time.Duration, pct float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(pct/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
