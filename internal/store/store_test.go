package store

import (
	"context"
	"errors"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/errors"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func newCorpus(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "design-patterns/singleton.md", "# Singleton Pattern\n\nOne instance per JVM.\n")
	writeFile(t, root, "design-patterns/factory.md", "# Factory Method\n\nDefers instantiation.\n")
	writeFile(t, root, "spring/beans/scopes.md", "# Bean Scopes\n\nsingleton and prototype\n")
	writeFile(t, root, "README.md", "# Notes\n")
	writeFile(t, root, "java/notes.txt", "plain text without heading")
	writeFile(t, root, "java/image.png", "not a document")
	writeFile(t, root, ".git/config.md", "# hidden")
	writeFile(t, root, "node_modules/pkg/readme.md", "# ignored")
	return root
}

func TestLoad_Documents(t *testing.T) {
	root := newCorpus(t)
	s, err := Load(context.Background(), root, LoadOptions{IgnoreDirs: []string{"node_modules"}})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"README",
		"design-patterns/factory",
		"design-patterns/singleton",
		"java/notes",
		"spring/beans/scopes",
	}, idsOf(s.All()))
	assert.Equal(t, []string{"design-patterns", "java", "spring", RootCategory}, s.Categories())
	assert.Empty(t, s.Skipped())
	assert.Equal(t, root, s.Root())

	doc, err := s.Get("design-patterns/singleton")
	require.NoError(t, err)
	assert.Equal(t, "Singleton Pattern", doc.Title)
	assert.Equal(t, "design-patterns", doc.Category)
	assert.Equal(t, "design-patterns/singleton.md", doc.Path)
	assert.Contains(t, doc.Body, "One instance per JVM.")
	assert.Equal(t, int64(len(doc.Body)), doc.Size)

	nested, err := s.Get("spring/beans/scopes")
	require.NoError(t, err)
	assert.Equal(t, "spring", nested.Category)

	txt, err := s.Get("java/notes")
	require.NoError(t, err)
	assert.Equal(t, "notes", txt.Title, "falls back to the file name")
}

func TestLoad_RoundTripIdentity(t *testing.T) {
	s, err := Load(context.Background(), newCorpus(t), LoadOptions{})
	require.NoError(t, err)

	for _, id := range idsOf(s.All()) {
		doc, err := s.Get(id)
		require.NoError(t, err)
		assert.Equal(t, id, doc.ID)
	}
}

func TestLoad_Titles(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		title    string
		wantTags []string
	}{
		{"heading", "intro\n## Deep Dive ##\nbody", "Deep Dive", nil},
		{"heading inside fence ignored", "```\n# comment\n```\n# Real\n", "Real", nil},
		{"frontmatter title", "---\ntitle: From Meta\ntags: [java, gc]\n---\nno heading here", "From Meta", []string{"java", "gc"}},
		{"heading beats frontmatter", "---\ntitle: Meta\n---\n# Heading\n", "Heading", nil},
		{"broken frontmatter is content", "---\ntitle: [oops\n---\nbody", "doc", nil},
		{"filename", "just words", "doc", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeFile(t, root, "cat/doc.md", tt.content)
			s, err := Load(context.Background(), root, LoadOptions{})
			require.NoError(t, err)

			doc, err := s.Get("cat/doc")
			require.NoError(t, err)
			assert.Equal(t, tt.title, doc.Title)
			assert.Equal(t, tt.wantTags, doc.Tags)
		})
	}
}

func TestLoad_SkipReasons(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a/ok.md", "# OK\n")
	writeFile(t, root, "a/blank.md", "  \n\t\n")
	writeFile(t, root, "a/big.md", "# Big\n"+string(make([]byte, 64)))
	writeFile(t, root, "a/ok.txt", "same id as ok.md")
	writeFile(t, root, "a/latin1.md", "caf\xe9")
	require.NoError(t, os.Symlink(filepath.Join(root, "nowhere.md"), filepath.Join(root, "a", "dangling.md")))

	s, err := Load(context.Background(), root, LoadOptions{MaxFileSize: 32})
	require.NoError(t, err)

	assert.Equal(t, []string{"a/ok"}, idsOf(s.All()))

	reasons := make(map[string]SkipReason)
	for _, sk := range s.Skipped() {
		reasons[sk.Path] = sk.Reason
	}
	assert.Equal(t, map[string]SkipReason{
		"a/blank.md":    SkipEmpty,
		"a/big.md":      SkipTooLarge,
		"a/ok.txt":      SkipDuplicateID,
		"a/latin1.md":   SkipInvalidUTF8,
		"a/dangling.md": SkipUnreadable,
	}, reasons)
	assert.Len(t, s.Results(), 6)
}

func TestLoad_EmptyRoot(t *testing.T) {
	s, err := Load(context.Background(), t.TempDir(), LoadOptions{})
	require.NoError(t, err)

	assert.Zero(t, s.Len())
	assert.Empty(t, slices.Collect(s.List("")))
	assert.Empty(t, s.Categories())
}

func TestLoad_RootErrors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	_, err := Load(context.Background(), missing, LoadOptions{})
	require.Error(t, err)
	var loadErr *apperrors.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, missing, loadErr.Root)
	assert.ErrorIs(t, err, apperrors.ErrLoad)
	assert.ErrorIs(t, err, os.ErrNotExist)

	file := filepath.Join(t.TempDir(), "file.md")
	require.NoError(t, os.WriteFile(file, []byte("# x"), 0o644))
	_, err = Load(context.Background(), file, LoadOptions{})
	assert.ErrorIs(t, err, apperrors.ErrLoad)
}

func TestLoad_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Load(ctx, newCorpus(t), LoadOptions{})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestLoadFS(t *testing.T) {
	fsys := fstest.MapFS{
		"jvm/gc.md":        {Data: []byte("# Garbage Collection\nG1 and ZGC")},
		"jvm/memory.MD":    {Data: []byte("# Memory Model\nheap")},
		"jvm/.draft.md":    {Data: []byte("# Draft")},
		"jvm/notes.pdf":    {Data: []byte("%PDF")},
		"jvm/inner/jit.md": {Data: []byte("# JIT")},
	}
	s, err := LoadFS(context.Background(), fsys, "mem", LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"jvm/gc", "jvm/inner/jit", "jvm/memory"}, idsOf(s.All()))
	assert.Equal(t, map[string]int{"jvm": 3}, s.CategoryCounts())
}

func TestStore_GetMissing(t *testing.T) {
	s := FromDocuments("mem")
	_, err := s.Get("missing-id")

	var nf *apperrors.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing-id", nf.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestStore_ListOrderAndIdempotence(t *testing.T) {
	s := FromDocuments("mem",
		Document{ID: "spring/z", Title: "AOP", Category: "spring"},
		Document{ID: "spring/a", Title: "Beans", Category: "spring"},
		Document{ID: "spring/b", Title: "AOP", Category: "spring"},
		Document{ID: "java/x", Title: "Streams", Category: "java"},
	)

	ids := func(category string) []string {
		var out []string
		for d := range s.List(category) {
			out = append(out, d.ID)
		}
		return out
	}

	assert.Equal(t, []string{"spring/b", "spring/z", "spring/a"}, ids("spring"))
	assert.Equal(t, ids("spring"), ids("spring"))
	assert.Equal(t, []string{"spring/b", "spring/z", "spring/a", "java/x"}, ids(""))
	assert.Equal(t, ids(""), ids(""))
	assert.Nil(t, ids("unknown"))
}

func TestStore_ListStopsEarly(t *testing.T) {
	s := FromDocuments("mem",
		Document{ID: "a", Category: "c"},
		Document{ID: "b", Category: "c"},
	)
	n := 0
	for range s.List("") {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestFromDocuments_Duplicates(t *testing.T) {
	s := FromDocuments("mem",
		Document{ID: "a", Title: "first", Path: "a.md"},
		Document{ID: "a", Title: "second", Path: "a.txt"},
	)
	doc, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "first", doc.Title)
	require.Len(t, s.Skipped(), 1)
	assert.Equal(t, SkipDuplicateID, s.Skipped()[0].Reason)
}

func TestStore_Fingerprint(t *testing.T) {
	a := FromDocuments("mem", Document{ID: "a", Size: 1})
	b := FromDocuments("other", Document{ID: "a", Size: 1})
	c := FromDocuments("mem", Document{ID: "a", Size: 2})

	assert.Len(t, a.Fingerprint(), 16)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func idsOf(docs iter.Seq[Document]) []string {
	var out []string
	for d := range docs {
		out = append(out, d.ID)
	}
	return out
}
