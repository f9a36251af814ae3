package store

import "time"

// RootCategory is assigned to documents that live directly under the corpus
// root rather than in a top-level subdirectory.
const RootCategory = "uncategorized"

// Document is one loaded topic file.
type Document struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Category string    `json:"category"`
	Body     string    `json:"body"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"mod_time"`
	Tags     []string  `json:"tags,omitempty"`
}

// Summary is the projection returned by search and list operations.
type Summary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
}

func (d Document) Summary() Summary {
	return Summary{ID: d.ID, Title: d.Title, Category: d.Category}
}
