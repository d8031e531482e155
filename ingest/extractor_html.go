package ingest

import (
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
)

var _ Extractor = HTMLExtractor{}

// HTMLExtractor reduces an HTML page to its readable article text. When
// readability finds no article it falls back to plain tag stripping.
type HTMLExtractor struct{}

func (HTMLExtractor) Extract(content []byte) (string, error) {
	base, _ := url.Parse("https://localhost/")
	article, err := readability.FromReader(strings.NewReader(string(content)), base)
	if err == nil && article.TextContent != "" {
		return strings.TrimSpace(article.TextContent), nil
	}
	return StripHTML(string(content)), nil
}
