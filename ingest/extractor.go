package ingest

import (
	"html"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Extractor converts raw document bytes into markdown text suitable for the
// decomposer. Plain text and markdown pass through unchanged; binary and
// markup formats are reduced to their readable text.
type Extractor interface {
	Extract(content []byte) (string, error)
}

// ContentType identifies the source format of a document.
type ContentType string

const (
	TypePlainText ContentType = "text/plain"
	TypeMarkdown  ContentType = "text/markdown"
	TypeHTML      ContentType = "text/html"
	TypePDF       ContentType = "application/pdf"
)

// ContentTypeFromExtension maps file extensions (without the dot) to
// content types. Unrecognized extensions are treated as plain text.
func ContentTypeFromExtension(ext string) ContentType {
	switch strings.ToLower(ext) {
	case "md", "markdown":
		return TypeMarkdown
	case "html", "htm":
		return TypeHTML
	case "pdf":
		return TypePDF
	default:
		return TypePlainText
	}
}

// ExtractorFor returns the built-in extractor for a content type.
func ExtractorFor(ct ContentType) Extractor {
	switch ct {
	case TypeHTML:
		return HTMLExtractor{}
	case TypePDF:
		return PDFExtractor{}
	default:
		return PlainTextExtractor{}
	}
}

// PlainTextExtractor returns content as-is. It serves both plain text and
// markdown, since markdown is the decomposer's native input.
type PlainTextExtractor struct{}

func (PlainTextExtractor) Extract(content []byte) (string, error) {
	return string(content), nil
}

// StripHTML removes tags, script and style bodies, and decodes entities.
// It is the crude fallback when readability extraction fails.
func StripHTML(content string) string {
	var result strings.Builder
	result.Grow(len(content))

	var tagName strings.Builder
	inTag, inScript, inStyle, collectingName := false, false, false, false

	i := 0
	for i < len(content) {
		r, size := utf8.DecodeRuneInString(content[i:])

		if r == '<' {
			inTag = true
			collectingName = true
			tagName.Reset()
			i += size
			continue
		}
		if inTag {
			if collectingName {
				if unicode.IsSpace(r) || r == '>' || (r == '/' && tagName.Len() > 0) {
					collectingName = false
					switch strings.ToLower(tagName.String()) {
					case "script":
						inScript = true
					case "/script":
						inScript = false
					case "style":
						inStyle = true
					case "/style":
						inStyle = false
					}
					result.WriteByte('\n')
				} else {
					tagName.WriteRune(r)
				}
			}
			if r == '>' {
				inTag = false
			}
			i += size
			continue
		}
		if inScript || inStyle {
			i += size
			continue
		}
		result.WriteRune(r)
		i += size
	}

	return collapseBlankLines(html.UnescapeString(result.String()))
}

func collapseBlankLines(text string) string {
	var result strings.Builder
	empties := 0
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			empties++
			continue
		}
		if result.Len() > 0 {
			result.WriteByte('\n')
			if empties > 0 {
				result.WriteByte('\n')
			}
		}
		result.WriteString(trimmed)
		empties = 0
	}
	return result.String()
}
