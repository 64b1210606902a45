package indexer

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const frontMatterDelimiter = "---"

// frontMatter is the YAML header a document may start with.
type frontMatter struct {
	// Session is the exact catalog title the document is about
	Session string `yaml:"session"`
}

// splitFrontMatter separates a leading YAML block from the body. Documents
// without one are returned unchanged.
func splitFrontMatter(doc string) (frontMatter, string, error) {
	var fm frontMatter

	normalized := strings.ReplaceAll(doc, "\r\n", "\n")
	if !strings.HasPrefix(normalized, frontMatterDelimiter+"\n") {
		return fm, doc, nil
	}

	rest := normalized[len(frontMatterDelimiter)+1:]
	end := strings.Index(rest, "\n"+frontMatterDelimiter)
	if end < 0 {
		return fm, doc, nil
	}

	header := rest[:end]
	body := strings.TrimPrefix(rest[end+len(frontMatterDelimiter)+1:], "\n")
	if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
		return fm, doc, fmt.Errorf("invalid front matter: %w", err)
	}
	fm.Session = strings.TrimSpace(fm.Session)
	return fm, body, nil
}
