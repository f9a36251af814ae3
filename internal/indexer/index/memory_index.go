// Package index holds the inverted index: term → set of documents with
// per-document frequency and positions. A Builder accumulates documents
// single-threaded; Build freezes the result into a MemoryIndex that is never
// written again and is therefore safe for any number of concurrent readers
// without locking.
package index

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/indexer/tokenizer"
)

// Builder accumulates documents into a new index. It is not safe for
// concurrent use.
type Builder struct {
	index       map[string]map[string]*Posting
	docLengths  map[string]int
	totalTokens int64
}

func NewBuilder() *Builder {
	return &Builder{
		index:      make(map[string]map[string]*Posting),
		docLengths: make(map[string]int),
	}
}

// AddDocument tokenizes title and body together, records every term and
// returns the token count. Adding the same docID twice merges its postings;
// callers keep ids unique.
func (b *Builder) AddDocument(docID string, title string, body string) int {
	tokens := tokenizer.Tokenize(title + " " + body)

	for _, token := range tokens {
		docs, exists := b.index[token.Term]
		if !exists {
			docs = make(map[string]*Posting)
			b.index[token.Term] = docs
		}
		p, exists := docs[docID]
		if !exists {
			p = &Posting{
				DocID:     docID,
				Positions: make([]int, 0, 4),
			}
			docs[docID] = p
		}
		p.Frequency++
		p.Positions = append(p.Positions, token.Position)
	}

	b.docLengths[docID] += len(tokens)
	b.totalTokens += int64(len(tokens))
	return len(tokens)
}

// Build freezes the accumulated postings into an immutable MemoryIndex.
// The Builder must not be used afterwards.
func (b *Builder) Build() *MemoryIndex {
	m := &MemoryIndex{
		postings:    make(map[string]PostingList, len(b.index)),
		docLengths:  b.docLengths,
		totalTokens: b.totalTokens,
	}
	for term, docs := range b.index {
		list := make(PostingList, 0, len(docs))
		for _, p := range docs {
			list = append(list, *p)
		}
		sort.Slice(list, func(i, j int) bool {
			return list[i].DocID < list[j].DocID
		})
		m.postings[term] = list
	}
	b.index = nil
	b.docLengths = nil
	return m
}

// MemoryIndex is an immutable inverted index.
type MemoryIndex struct {
	postings    map[string]PostingList
	docLengths  map[string]int
	totalTokens int64
}

// Empty returns an index with no documents.
func Empty() *MemoryIndex {
	return NewBuilder().Build()
}

// Search returns the postings for an already-normalised term, ordered by
// DocID. The returned slice is shared and must not be modified.
func (m *MemoryIndex) Search(term string) PostingList {
	return m.postings[term]
}

// DocLength is the number of tokens indexed for docID.
func (m *MemoryIndex) DocLength(docID string) int {
	return m.docLengths[docID]
}

func (m *MemoryIndex) AvgDocLength() float64 {
	if len(m.docLengths) == 0 {
		return 0
	}
	return float64(m.totalTokens) / float64(len(m.docLengths))
}

func (m *MemoryIndex) DocCount() int {
	return len(m.docLengths)
}

func (m *MemoryIndex) TermCount() int {
	return len(m.postings)
}
