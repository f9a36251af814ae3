package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/errors"
)

// LoadOptions controls which files a scan considers.
type LoadOptions struct {
	// Extensions lists the accepted file extensions, lower-case with the
	// leading dot. Defaults to .md, .markdown and .txt.
	Extensions []string
	// MaxFileSize skips larger files. Zero disables the limit.
	MaxFileSize int64
	// IgnoreDirs names directories that are never descended into, in
	// addition to hidden ones.
	IgnoreDirs []string
}

// OptionsFromConfig maps the corpus section of the config file.
func OptionsFromConfig(cfg config.CorpusConfig) LoadOptions {
	return LoadOptions{
		Extensions:  cfg.Extensions,
		MaxFileSize: cfg.MaxFileSize,
		IgnoreDirs:  cfg.IgnoreDirs,
	}
}

func (o LoadOptions) withDefaults() LoadOptions {
	if len(o.Extensions) == 0 {
		o.Extensions = []string{".md", ".markdown", ".txt"}
	}
	return o
}

func (o LoadOptions) accepts(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range o.Extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

func (o LoadOptions) ignoresDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	for _, d := range o.IgnoreDirs {
		if d == name {
			return true
		}
	}
	return false
}

// Load scans root recursively and returns the populated Store. It fails
// with a *errors.LoadError only when root itself is missing, not a
// directory, or unreadable; problems with individual files are recorded as
// Skipped results and logged as warnings.
func Load(ctx context.Context, root string, opts LoadOptions) (*Store, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, &apperrors.LoadError{Root: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &apperrors.LoadError{Root: root, Err: errors.New("not a directory")}
	}
	return LoadFS(ctx, os.DirFS(root), root, opts)
}

// LoadFS is Load over an arbitrary file system; root is only used for
// reporting.
func LoadFS(ctx context.Context, fsys fs.FS, root string, opts LoadOptions) (*Store, error) {
	opts = opts.withDefaults()
	logger := slog.Default().With("component", "document-store")
	start := time.Now()

	if _, err := fs.ReadDir(fsys, "."); err != nil {
		return nil, &apperrors.LoadError{Root: root, Err: err}
	}

	var results []LoadResult
	seen := make(map[string]string)

	skip := func(p string, reason SkipReason, detail error) {
		s := Skipped{Path: p, Reason: reason}
		if detail != nil {
			s.Detail = detail.Error()
		}
		results = append(results, s)
		logger.Warn("file skipped", "path", p, "reason", reason, "detail", s.Detail)
	}

	walkErr := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if p == "." {
				return err
			}
			skip(p, SkipUnreadable, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if p != "." && opts.ignoresDir(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !opts.accepts(d.Name()) {
			return nil
		}

		doc, reason, detail := readDocument(fsys, p, opts)
		if reason != "" {
			skip(p, reason, detail)
			return nil
		}
		if prev, dup := seen[doc.ID]; dup {
			skip(p, SkipDuplicateID, fmt.Errorf("id %q already loaded from %s", doc.ID, prev))
			return nil
		}
		seen[doc.ID] = p
		results = append(results, Loaded{Document: doc})
		return nil
	})
	if walkErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &apperrors.LoadError{Root: root, Err: walkErr}
	}

	s := build(root, results)
	logger.Info("corpus loaded",
		"root", root,
		"documents", s.Len(),
		"skipped", len(s.Skipped()),
		"categories", len(s.categories),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return s, nil
}

func readDocument(fsys fs.FS, p string, opts LoadOptions) (Document, SkipReason, error) {
	info, err := fs.Stat(fsys, p)
	if err != nil {
		return Document{}, SkipUnreadable, err
	}
	if opts.MaxFileSize > 0 && info.Size() > opts.MaxFileSize {
		return Document{}, SkipTooLarge, fmt.Errorf("%d bytes exceeds limit of %d", info.Size(), opts.MaxFileSize)
	}
	data, err := fs.ReadFile(fsys, p)
	if err != nil {
		return Document{}, SkipUnreadable, err
	}
	if !utf8.Valid(data) {
		return Document{}, SkipInvalidUTF8, nil
	}
	body := string(data)
	if strings.TrimSpace(body) == "" {
		return Document{}, SkipEmpty, nil
	}

	title, tags := extractTitle(p, body)
	return Document{
		ID:       documentID(p),
		Title:    title,
		Category: categoryOf(p),
		Body:     body,
		Path:     p,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
		Tags:     tags,
	}, "", nil
}
