// Package store loads a directory tree of topic files into an immutable,
// id-keyed document collection.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"iter"
	"sort"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/errors"
)

// Store is the loaded corpus. It is never modified after Load returns and
// may be shared between goroutines.
type Store struct {
	root        string
	docs        map[string]Document
	ids         []string
	byTitle     []string
	categories  map[string][]string
	results     []LoadResult
	fingerprint string
}

func build(root string, results []LoadResult) *Store {
	s := &Store{
		root:       root,
		docs:       make(map[string]Document),
		categories: make(map[string][]string),
		results:    results,
	}
	for _, r := range results {
		l, ok := r.(Loaded)
		if !ok {
			continue
		}
		d := l.Document
		s.docs[d.ID] = d
		s.ids = append(s.ids, d.ID)
		s.categories[d.Category] = append(s.categories[d.Category], d.ID)
	}
	sort.Strings(s.ids)
	s.fingerprint = fingerprint(s)
	s.byTitle = append([]string(nil), s.ids...)
	s.sortByTitle(s.byTitle)
	for _, ids := range s.categories {
		s.sortByTitle(ids)
	}
	return s
}

func (s *Store) sortByTitle(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		a, b := s.docs[ids[i]], s.docs[ids[j]]
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.ID < b.ID
	})
}

// FromDocuments builds a Store directly from documents. Later documents
// with an id already seen are recorded as duplicate-id skips.
func FromDocuments(root string, docs ...Document) *Store {
	seen := make(map[string]bool, len(docs))
	results := make([]LoadResult, 0, len(docs))
	for _, d := range docs {
		if seen[d.ID] {
			results = append(results, Skipped{Path: d.Path, Reason: SkipDuplicateID})
			continue
		}
		seen[d.ID] = true
		results = append(results, Loaded{Document: d})
	}
	return build(root, results)
}

// Get returns the document with the given id or a *errors.NotFoundError.
func (s *Store) Get(id string) (Document, error) {
	d, ok := s.docs[id]
	if !ok {
		return Document{}, &apperrors.NotFoundError{ID: id}
	}
	return d, nil
}

// List yields the documents of category ordered by title, then id. An empty
// category yields every document in the same order. The sequence may be
// ranged over any number of times.
func (s *Store) List(category string) iter.Seq[Document] {
	ids := s.byTitle
	if category != "" {
		ids = s.categories[category]
	}
	return s.seq(ids)
}

// All yields every document in ascending id order.
func (s *Store) All() iter.Seq[Document] {
	return s.seq(s.ids)
}

func (s *Store) seq(ids []string) iter.Seq[Document] {
	return func(yield func(Document) bool) {
		for _, id := range ids {
			if !yield(s.docs[id]) {
				return
			}
		}
	}
}

// Categories returns the distinct categories in ascending order.
func (s *Store) Categories() []string {
	out := make([]string, 0, len(s.categories))
	for c := range s.categories {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// CategoryCounts maps each category to its document count.
func (s *Store) CategoryCounts() map[string]int {
	out := make(map[string]int, len(s.categories))
	for c, ids := range s.categories {
		out[c] = len(ids)
	}
	return out
}

func (s *Store) Len() int { return len(s.docs) }

func (s *Store) Root() string { return s.root }

// Results returns every load outcome in scan order.
func (s *Store) Results() []LoadResult {
	return append([]LoadResult(nil), s.results...)
}

// Skipped returns only the files that were left out.
func (s *Store) Skipped() []Skipped {
	var out []Skipped
	for _, r := range s.results {
		if sk, ok := r.(Skipped); ok {
			out = append(out, sk)
		}
	}
	return out
}

// Fingerprint identifies the loaded content: stores with the same ids,
// sizes and modification times share a fingerprint.
func (s *Store) Fingerprint() string { return s.fingerprint }

func fingerprint(s *Store) string {
	h := sha256.New()
	for _, id := range s.ids {
		d := s.docs[id]
		h.Write([]byte(id))
		h.Write([]byte{0})
		h.Write(strconv.AppendInt(nil, d.Size, 10))
		h.Write([]byte{0})
		h.Write(strconv.AppendInt(nil, d.ModTime.UnixNano(), 10))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil)[:8])
}
