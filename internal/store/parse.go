package store

import (
	"path"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var frontmatterPattern = regexp.MustCompile(`(?s)\A---\r?\n(.*?)\r?\n---[ \t]*(?:\r?\n|\z)`)

type frontmatter struct {
	Title string   `yaml:"title"`
	Tags  []string `yaml:"tags"`
}

// splitFrontmatter returns the parsed YAML front-matter block, if any, and
// the content that follows it. A block that does not parse is treated as
// ordinary content.
func splitFrontmatter(content string) (frontmatter, string, bool) {
	m := frontmatterPattern.FindStringSubmatchIndex(content)
	if m == nil {
		return frontmatter{}, content, false
	}
	var fm frontmatter
	if err := yaml.Unmarshal([]byte(content[m[2]:m[3]]), &fm); err != nil {
		return frontmatter{}, content, false
	}
	return fm, content[m[1]:], true
}

// headingTitle returns the text of the first '#'-prefixed line outside
// fenced code blocks, or "" when there is none.
func headingTitle(content string) string {
	inFence := false
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence || !strings.HasPrefix(trimmed, "#") {
			continue
		}
		title := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		// closing sequence of an ATX heading: "## Title ##"
		title = strings.TrimSpace(strings.TrimRight(title, "#"))
		if title != "" {
			return title
		}
	}
	return ""
}

// extractTitle picks the heading, then the front-matter title, then the
// file name without extension.
func extractTitle(relPath, content string) (string, []string) {
	fm, rest, _ := splitFrontmatter(content)
	if title := headingTitle(rest); title != "" {
		return title, fm.Tags
	}
	if title := strings.TrimSpace(fm.Title); title != "" {
		return title, fm.Tags
	}
	base := path.Base(relPath)
	return strings.TrimSuffix(base, path.Ext(base)), fm.Tags
}

// documentID strips the extension from a slash-separated relative path.
func documentID(relPath string) string {
	return strings.TrimSuffix(relPath, path.Ext(relPath))
}

// categoryOf returns the top-level directory of relPath.
func categoryOf(relPath string) string {
	if i := strings.IndexByte(relPath, '/'); i > 0 {
		return relPath[:i]
	}
	return RootCategory
}
