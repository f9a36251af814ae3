package index

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_BuildsSetSemantics(t *testing.T) {
	b := NewBuilder()
	b.AddDocument("design-patterns/singleton", "Singleton Pattern", "A singleton has one instance. Singleton again.")
	b.AddDocument("design-patterns/factory", "Factory Method", "Creates instance objects")
	idx := b.Build()

	postings := idx.Search("singleton")
	require.Len(t, postings, 1, "a document appears at most once per term")
	assert.Equal(t, "design-patterns/singleton", postings[0].DocID)
	assert.Equal(t, 3, postings[0].Frequency)
	assert.Equal(t, []int{0, 2, 6}, postings[0].Positions)
	assert.Equal(t, 8, idx.DocLength("design-patterns/singleton"))

	assert.Equal(t, []string{"design-patterns/factory", "design-patterns/singleton"}, idx.Search("instance").DocIDs())
	assert.Nil(t, idx.Search("observer"))
}

func TestMemoryIndex_Stats(t *testing.T) {
	b := NewBuilder()
	assert.Equal(t, 2, b.AddDocument("a", "aa bb", ""))
	assert.Equal(t, 4, b.AddDocument("b", "aa", "cc dd ee"))
	idx := b.Build()

	assert.Equal(t, 2, idx.DocCount())
	assert.Equal(t, 5, idx.TermCount())
	assert.Equal(t, 2, idx.DocLength("a"))
	assert.Equal(t, 4, idx.DocLength("b"))
	assert.InDelta(t, 3.0, idx.AvgDocLength(), 1e-9)
}

func TestEmpty(t *testing.T) {
	idx := Empty()
	assert.Zero(t, idx.DocCount())
	assert.Zero(t, idx.AvgDocLength())
	assert.Zero(t, idx.TermCount())
	assert.Nil(t, idx.Search("anything"))
}

func BenchmarkBuilderAdd(b *testing.B) {
	builder := NewBuilder()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		builder.AddDocument(fmt.Sprintf("doc-%d", i), "benchmark title",
			"dependency injection wires beans together through constructors and setters")
	}
}

func BenchmarkMemoryIndexSearchParallel(b *testing.B) {
	builder := NewBuilder()
	for i := 0; i < 10000; i++ {
		builder.AddDocument(fmt.Sprintf("doc-%d", i), "spring beans",
			"bean scopes singleton prototype request session")
	}
	idx := builder.Build()

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = idx.Search("singleton")
		}
	})
}
