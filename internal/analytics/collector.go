package analytics

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/metrics"
)

// Collector decouples the query path from slow recorders: Record only
// enqueues, and a single goroutine forwards events to every sink. When the
// buffer is full the event is dropped.
type Collector struct {
	sinks   []Recorder
	eventCh chan QueryEvent
	metrics *metrics.Metrics
	logger  *slog.Logger
	done    chan struct{}
	once    sync.Once
}

func NewCollector(bufferSize int, m *metrics.Metrics, sinks ...Recorder) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		sinks:   sinks,
		eventCh: make(chan QueryEvent, bufferSize),
		metrics: m,
		logger:  slog.Default().With("component", "analytics-collector"),
		done:    make(chan struct{}),
	}
}

// Start forwards events until ctx is cancelled, then drains what is
// already buffered.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case e := <-c.eventCh:
				c.forward(e)
			case <-ctx.Done():
				c.drain()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh), "sinks", len(c.sinks))
}

func (c *Collector) Record(e QueryEvent) {
	select {
	case c.eventCh <- e:
	default:
		c.count("dropped")
		c.logger.Warn("analytics event dropped, buffer full", "operation", e.Operation)
	}
}

// Wait blocks until the forwarding goroutine has drained and exited.
func (c *Collector) Wait() {
	<-c.done
}

func (c *Collector) forward(e QueryEvent) {
	for _, s := range c.sinks {
		s.Record(e)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case e := <-c.eventCh:
			c.forward(e)
		default:
			return
		}
	}
}

func (c *Collector) count(status string) {
	if c.metrics != nil {
		c.metrics.AnalyticsEvents.WithLabelValues(status).Inc()
	}
}
