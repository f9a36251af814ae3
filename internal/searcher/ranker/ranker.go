// Package ranker scores candidate documents with Okapi BM25.
package ranker

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/indexer/index"
)

const (
	k1 = 1.2
	b  = 0.75
)

type ScoredDoc struct {
	DocID string  `json:"id"`
	Score float64 `json:"score"`
}

// Corpus supplies the collection statistics BM25 needs. *index.MemoryIndex
// implements it.
type Corpus interface {
	DocCount() int
	AvgDocLength() float64
	DocLength(docID string) int
}

// Rank scores every document that appears in postingsPerTerm and returns
// them by descending score, ties broken by ascending id. Scores are rounded
// to four decimals so equal documents compare equal. A limit <= 0 returns
// every document.
func Rank(postingsPerTerm map[string]index.PostingList, corpus Corpus, limit int) []ScoredDoc {
	totalDocs := int64(corpus.DocCount())
	avgDocLength := corpus.AvgDocLength()

	scores := make(map[string]float64)
	for _, postings := range postingsPerTerm {
		idf := computeIDF(totalDocs, int64(len(postings)))
		for _, posting := range postings {
			tfNorm := computeTFNorm(
				float64(posting.Frequency),
				float64(corpus.DocLength(posting.DocID)),
				avgDocLength,
			)
			scores[posting.DocID] += idf * tfNorm
		}
	}

	result := make([]ScoredDoc, 0, len(scores))
	for docID, score := range scores {
		result = append(result, ScoredDoc{
			DocID: docID,
			Score: math.Round(score*10000) / 10000,
		})
	}
	return TopK(result, limit)
}

// Sort orders docs by descending score, then ascending id.
func Sort(docs []ScoredDoc) {
	sort.Slice(docs, func(i, j int) bool { return better(docs[i], docs[j]) })
}

func computeIDF(totalDocs int64, docFreq int64) float64 {
	numerator := float64(totalDocs) - float64(docFreq)
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

func computeTFNorm(termFreq float64, docLength float64, avgDocLength float64) float64 {
	if avgDocLength == 0 {
		return 0
	}
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}
