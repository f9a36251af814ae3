package store

// SkipReason explains why a candidate file was not loaded.
type SkipReason string

const (
	SkipUnreadable  SkipReason = "unreadable"
	SkipEmpty       SkipReason = "empty"
	SkipTooLarge    SkipReason = "too-large"
	SkipDuplicateID SkipReason = "duplicate-id"
	SkipInvalidUTF8 SkipReason = "invalid-utf8"
)

// LoadResult is the outcome of one candidate file during a scan: either
// Loaded or Skipped.
type LoadResult interface {
	loadResult()
}

// Loaded carries a document that made it into the store.
type Loaded struct {
	Document Document
}

func (Loaded) loadResult() {}

// Skipped records a candidate file that was left out, with the reason.
type Skipped struct {
	Path   string     `json:"path"`
	Reason SkipReason `json:"reason"`
	Detail string     `json:"detail,omitempty"`
}

func (Skipped) loadResult() {}
