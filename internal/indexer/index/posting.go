package index

// Posting records one document's occurrences of a term.
type Posting struct {
	DocID     string
	Frequency int
	Positions []int
}

type PostingList []Posting

// DocIDs returns the ids of the postings in list order.
func (pl PostingList) DocIDs() []string {
	ids := make([]string, len(pl))
	for i, p := range pl {
		ids[i] = p.DocID
	}
	return ids
}
