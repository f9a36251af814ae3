// Package indexer builds and queries the inverted index over the loaded
// corpus.
package indexer

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/store"
)

// Stats describes the current index.
type Stats struct {
	Documents     int           `json:"documents"`
	Terms         int           `json:"terms"`
	AvgDocLength  float64       `json:"avg_doc_length"`
	BuiltAt       time.Time     `json:"built_at"`
	BuildDuration time.Duration `json:"build_duration_ns"`
}

type snapshot struct {
	idx      *index.MemoryIndex
	builtAt  time.Time
	duration time.Duration
}

// Engine owns the current index. Build replaces it atomically; readers
// always see either the old or the new index in full and never take a lock.
type Engine struct {
	current atomic.Pointer[snapshot]
	logger  *slog.Logger
}

func NewEngine() *Engine {
	e := &Engine{
		logger: slog.Default().With("component", "indexer"),
	}
	e.current.Store(&snapshot{idx: index.Empty()})
	return e
}

// Build indexes the title and body of every document into a fresh index
// and swaps it in. Building the same documents twice yields the same index.
func (e *Engine) Build(docs []store.Document) Stats {
	start := time.Now()
	b := index.NewBuilder()
	var tokens int
	for _, d := range docs {
		tokens += b.AddDocument(d.ID, d.Title, d.Body)
	}
	snap := &snapshot{
		idx:      b.Build(),
		builtAt:  time.Now(),
		duration: time.Since(start),
	}
	e.current.Store(snap)

	stats := statsOf(snap)
	e.logger.Info("index built",
		"documents", stats.Documents,
		"terms", stats.Terms,
		"tokens", tokens,
		"duration_ms", snap.duration.Milliseconds(),
	)
	return stats
}

// Search returns the ascending ids of the documents that contain every
// token of keyword. A keyword without any token matches nothing.
func (e *Engine) Search(keyword string) []string {
	idx := e.current.Load().idx
	postings := lookup(idx, tokenizer.Terms(keyword))
	if postings == nil {
		return []string{}
	}
	return intersectPostings(postings)
}

// Rank returns the same documents as Search ordered by BM25 score, highest
// first, ties by id. A limit <= 0 returns every match.
func (e *Engine) Rank(keyword string, limit int) []ranker.ScoredDoc {
	idx := e.current.Load().idx
	postings := lookup(idx, tokenizer.Terms(keyword))
	if postings == nil {
		return []ranker.ScoredDoc{}
	}
	if len(postings) > 1 {
		postings = restrictTo(postings, intersectPostings(postings))
	}
	return ranker.Rank(postings, idx, limit)
}

func (e *Engine) Stats() Stats {
	return statsOf(e.current.Load())
}

func statsOf(s *snapshot) Stats {
	return Stats{
		Documents:     s.idx.DocCount(),
		Terms:         s.idx.TermCount(),
		AvgDocLength:  s.idx.AvgDocLength(),
		BuiltAt:       s.builtAt,
		BuildDuration: s.duration,
	}
}

// lookup fetches the postings of every term, or nil if any term is absent.
func lookup(idx *index.MemoryIndex, terms []string) map[string]index.PostingList {
	if len(terms) == 0 {
		return nil
	}
	postingsPerTerm := make(map[string]index.PostingList, len(terms))
	for _, term := range terms {
		postings := idx.Search(term)
		if len(postings) == 0 {
			return nil
		}
		postingsPerTerm[term] = postings
	}
	return postingsPerTerm
}

// intersectPostings merges the DocID-ordered lists, starting from the
// shortest, and returns the ids present in all of them.
func intersectPostings(postingsPerTerm map[string]index.PostingList) []string {
	var shortest index.PostingList
	for _, postings := range postingsPerTerm {
		if shortest == nil || len(postings) < len(shortest) {
			shortest = postings
		}
	}
	candidates := shortest.DocIDs()
	for _, postings := range postingsPerTerm {
		candidates = intersectSorted(candidates, postings)
		if len(candidates) == 0 {
			break
		}
	}
	return candidates
}

func intersectSorted(ids []string, postings index.PostingList) []string {
	out := ids[:0]
	i, j := 0, 0
	for i < len(ids) && j < len(postings) {
		switch {
		case ids[i] == postings[j].DocID:
			out = append(out, ids[i])
			i++
			j++
		case ids[i] < postings[j].DocID:
			i++
		default:
			j++
		}
	}
	return out
}

func restrictTo(postingsPerTerm map[string]index.PostingList, ids []string) map[string]index.PostingList {
	keep := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}
	filtered := make(map[string]index.PostingList, len(postingsPerTerm))
	for term, postings := range postingsPerTerm {
		list := make(index.PostingList, 0, len(ids))
		for _, p := range postings {
			if _, ok := keep[p.DocID]; ok {
				list = append(list, p)
			}
		}
		filtered[term] = list
	}
	return filtered
}
