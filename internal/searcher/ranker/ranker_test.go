package ranker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/indexer/index"
)

func buildIndex(docs map[string]string) *index.MemoryIndex {
	b := index.NewBuilder()
	for id, body := range docs {
		b.AddDocument(id, "", body)
	}
	return b.Build()
}

func TestRank_HigherFrequencyWins(t *testing.T) {
	idx := buildIndex(map[string]string{
		"heavy": "singleton singleton singleton pattern",
		"light": "singleton pattern factory method",
		"none":  "observer pattern",
	})
	postings := map[string]index.PostingList{"singleton": idx.Search("singleton")}

	got := Rank(postings, idx, 0)
	require.Len(t, got, 2)
	assert.Equal(t, "heavy", got[0].DocID)
	assert.Equal(t, "light", got[1].DocID)
	assert.Greater(t, got[0].Score, got[1].Score)
}

func TestRank_TiesBrokenByID(t *testing.T) {
	idx := buildIndex(map[string]string{
		"b": "bean scope",
		"a": "bean scope",
		"c": "bean scope",
	})
	got := Rank(map[string]index.PostingList{"bean": idx.Search("bean")}, idx, 0)

	ids := make([]string, len(got))
	for i, d := range got {
		ids[i] = d.DocID
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.Equal(t, got[0].Score, got[2].Score)
}

func TestRank_Limit(t *testing.T) {
	idx := buildIndex(map[string]string{"a": "jvm", "b": "jvm", "c": "jvm"})
	got := Rank(map[string]index.PostingList{"jvm": idx.Search("jvm")}, idx, 2)
	assert.Len(t, got, 2)
}

func TestRank_Empty(t *testing.T) {
	got := Rank(nil, index.Empty(), 10)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestComputeTFNorm_ZeroAverage(t *testing.T) {
	assert.Zero(t, computeTFNorm(3, 10, 0))
}

func TestComputeIDF_RareTermsScoreHigher(t *testing.T) {
	assert.Greater(t, computeIDF(100, 1), computeIDF(100, 50))
	assert.GreaterOrEqual(t, computeIDF(100, 100), 0.0)
}

func TestTopK_MatchesFullSort(t *testing.T) {
	docs := []ScoredDoc{
		{"e", 0.5}, {"a", 2}, {"d", 1}, {"b", 2}, {"c", 1}, {"f", 3}, {"g", 0.5},
	}
	for k := 0; k <= len(docs)+1; k++ {
		want := append([]ScoredDoc(nil), docs...)
		Sort(want)
		if k > 0 && k < len(want) {
			want = want[:k]
		}
		got := TopK(append([]ScoredDoc(nil), docs...), k)
		assert.Equal(t, want, got, "k=%d", k)
	}
}

func BenchmarkTopK(b *testing.B) {
	docs := make([]ScoredDoc, 10000)
	for i := range docs {
		docs[i] = ScoredDoc{DocID: string(rune('a' + i%26)), Score: float64(i%997) / 7}
	}
	buf := make([]ScoredDoc, len(docs))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		copy(buf, docs)
		TopK(buf, 20)
	}
}
