// Package tracing records in-process span trees carried through
// context.Context and writes them to slog once the root span ends.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type contextKey struct{}

type Span struct {
	Name     string
	TraceID  string
	Start    time.Time
	Duration time.Duration

	mu       sync.Mutex
	attrs    []slog.Attr
	children []*Span
	err      error
}

// StartSpan begins a new trace with a random id.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	s := &Span{Name: name, TraceID: uuid.NewString(), Start: time.Now()}
	return context.WithValue(ctx, contextKey{}, s), s
}

// StartChildSpan begins a span under the one in ctx. Without a parent it
// starts a new trace.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := FromContext(ctx)
	if parent == nil {
		return StartSpan(ctx, name)
	}
	child := &Span{Name: name, TraceID: parent.TraceID, Start: time.Now()}
	parent.mu.Lock()
	parent.children = append(parent.children, child)
	parent.mu.Unlock()
	return context.WithValue(ctx, contextKey{}, child), child
}

func FromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(contextKey{}).(*Span)
	return s
}

func (s *Span) End() {
	s.Duration = time.Since(s.Start)
}

func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, slog.Any(key, value))
	s.mu.Unlock()
}

// SetError marks the span failed.
func (s *Span) SetError(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Children returns the direct child spans in start order.
func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

// Log writes the span and its descendants, depth first, one record each.
func (s *Span) Log(logger *slog.Logger) {
	s.log(logger, "", 0)
}

func (s *Span) log(logger *slog.Logger, parent string, depth int) {
	s.mu.Lock()
	attrs := []slog.Attr{
		slog.String("trace_id", s.TraceID),
		slog.String("span", s.Name),
		slog.Int("depth", depth),
		slog.Int64("duration_us", s.Duration.Microseconds()),
	}
	if parent != "" {
		attrs = append(attrs, slog.String("parent", parent))
	}
	attrs = append(attrs, s.attrs...)
	level := slog.LevelInfo
	if s.err != nil {
		level = slog.LevelError
		attrs = append(attrs, slog.String("error", s.err.Error()))
	}
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()

	logger.LogAttrs(context.Background(), level, "span", attrs...)
	for _, c := range children {
		c.log(logger, s.Name, depth+1)
	}
}
