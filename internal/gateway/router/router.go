// Package router wires the corpus API, analytics and health routes onto a
// ServeMux and applies the middleware chain.
package router

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/middleware"
)

type Options struct {
	Analytics    *analytics.Aggregator
	Health       *health.Checker
	Metrics      *metrics.Metrics
	Limiter      *middleware.Limiter
	AllowOrigins []string
	// RequestTimeout bounds whole requests; zero disables the bound.
	RequestTimeout time.Duration
}

// New builds the HTTP handler of the corpus server.
//
// Route table:
//
//	GET    /api/v1/documents/{id...}
//	GET    /api/v1/documents?category=
//	GET    /api/v1/search?q=&limit=
//	GET    /api/v1/categories
//	GET    /api/v1/stats
//	GET    /api/v1/cache/stats
//	POST   /api/v1/cache/invalidate
//	GET    /api/v1/analytics
//	GET    /health/live
//	GET    /health/ready
//
// Middleware chain (outermost first):
//
//	RequestID → CORS → Timeout → Metrics → RateLimit → mux
func New(h *handler.Handler, opts Options) http.Handler {
	mux := http.NewServeMux()
	h.Register(mux)

	if opts.Analytics != nil {
		mux.Handle("GET /api/v1/analytics", opts.Analytics)
	}
	if opts.Health != nil {
		mux.HandleFunc("GET /health/live", opts.Health.LiveHandler())
		mux.HandleFunc("GET /health/ready", opts.Health.ReadyHandler())
	}

	// Metrics must see the request the mux annotates with its pattern, so
	// nothing between them may replace the request.
	var chain http.Handler = mux
	if opts.Limiter != nil {
		chain = middleware.RateLimit(opts.Limiter)(chain)
	}
	if opts.Metrics != nil {
		chain = middleware.Metrics(opts.Metrics)(chain)
	}
	if opts.RequestTimeout > 0 {
		chain = middleware.Timeout(opts.RequestTimeout)(chain)
	}
	chain = middleware.CORS(middleware.DefaultCORSConfig(opts.AllowOrigins...))(chain)
	chain = middleware.RequestID(chain)
	return chain
}
