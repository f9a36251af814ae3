package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/query"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/store"
)

type printer struct {
	w    io.Writer
	json bool
}

func newPrinter(w io.Writer, format string) *printer {
	return &printer{w: w, json: format == formatJSON}
}

func (p *printer) encode(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *printer) document(d store.Document) error {
	if p.json {
		return p.encode(d)
	}
	fmt.Fprintf(p.w, "%s\n%s | %s\n\n%s", d.Title, d.ID, d.Category, d.Body)
	if len(d.Body) > 0 && d.Body[len(d.Body)-1] != '\n' {
		fmt.Fprintln(p.w)
	}
	return nil
}

type searchHit struct {
	store.Summary
	Score float64 `json:"score"`
}

func (p *printer) search(resp query.SearchResponse) error {
	hits := make([]searchHit, 0, len(resp.Results))
	for _, r := range resp.Results {
		hits = append(hits, searchHit{Summary: r.Document.Summary(), Score: r.Score})
	}
	if p.json {
		return p.encode(map[string]any{
			"query":      resp.Query,
			"total_hits": resp.TotalHits,
			"results":    hits,
		})
	}
	if len(hits) == 0 {
		fmt.Fprintf(p.w, "no documents match %q\n", resp.Query)
		return nil
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	for _, h := range hits {
		fmt.Fprintf(tw, "%.4f\t%s\t%s\t%s\n", h.Score, h.ID, h.Category, h.Title)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if resp.TotalHits > len(hits) {
		fmt.Fprintf(p.w, "(%d of %d matches)\n", len(hits), resp.TotalHits)
	}
	return nil
}

func (p *printer) categories(cats []query.CategoryInfo) error {
	if p.json {
		return p.encode(map[string]any{"categories": cats})
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	for _, c := range cats {
		fmt.Fprintf(tw, "%s\t%d\n", c.Name, c.Documents)
	}
	return tw.Flush()
}

func (p *printer) documents(docs []store.Document) error {
	summaries := make([]store.Summary, 0, len(docs))
	for _, d := range docs {
		summaries = append(summaries, d.Summary())
	}
	if p.json {
		return p.encode(map[string]any{"count": len(summaries), "documents": summaries})
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.ID, s.Category, s.Title)
	}
	return tw.Flush()
}
