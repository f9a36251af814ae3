package ranker

import "container/heap"

// TopK returns the k best of docs in Sort order without sorting all of
// them. k <= 0 or k >= len(docs) sorts and returns docs itself.
func TopK(docs []ScoredDoc, k int) []ScoredDoc {
	if k <= 0 || k >= len(docs) {
		Sort(docs)
		return docs
	}
	h := make(worstFirst, 0, k+1)
	for _, d := range docs {
		if len(h) < k {
			heap.Push(&h, d)
			continue
		}
		if better(d, h[0]) {
			h[0] = d
			heap.Fix(&h, 0)
		}
	}
	out := make([]ScoredDoc, len(h))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(ScoredDoc)
	}
	return out
}

func better(a, b ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.DocID < b.DocID
}

// worstFirst is a min-heap on rank: the root is the weakest kept doc.
type worstFirst []ScoredDoc

func (h worstFirst) Len() int           { return len(h) }
func (h worstFirst) Less(i, j int) bool { return better(h[j], h[i]) }
func (h worstFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *worstFirst) Push(x any) { *h = append(*h, x.(ScoredDoc)) }

func (h *worstFirst) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
