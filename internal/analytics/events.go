// Package analytics records what the corpus is queried for: an in-process
// aggregator, an asynchronous fan-out collector, and the HTTP view of the
// aggregated statistics.
package analytics

import "time"

type Operation string

const (
	OpFind   Operation = "find"
	OpSearch Operation = "search"
	OpList   Operation = "list"
)

type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeEmpty    Outcome = "empty"
	OutcomeNotFound Outcome = "not_found"
	OutcomeInvalid  Outcome = "invalid"
	OutcomeNotReady Outcome = "not_ready"
	OutcomeError    Outcome = "error"
)

// QueryEvent describes one answered (or rejected) query. Query holds the
// id, keyword or category depending on Operation.
type QueryEvent struct {
	Operation Operation `json:"operation"`
	Query     string    `json:"query"`
	Outcome   Outcome   `json:"outcome"`
	Hits      int       `json:"hits"`
	LatencyUs int64     `json:"latency_us"`
	CacheHit  bool      `json:"cache_hit"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Recorder receives query events. Implementations must not block the
// caller for long.
type Recorder interface {
	Record(QueryEvent)
}

// Discard drops every event.
var Discard Recorder = discard{}

type discard struct{}

func (discard) Record(QueryEvent) {}
