package ingest

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gtext "github.com/yuin/goldmark/text"
)

// blockKind classifies a top-level markdown block for decomposition.
type blockKind int

const (
	kindHeading blockKind = iota
	kindParagraph
	kindBlockQuote
	kindList
	kindCode
	kindOther
)

// block is one top-level markdown block rendered back to a markdown
// fragment. Fragments carry no trailing newline; the decomposer joins them.
type block struct {
	kind  blockKind
	level int // headings only
	text  string
}

// parseBlocks parses markdown into an ordered list of rendered top-level
// blocks using the goldmark AST. The AST is owned by this call and discarded
// after rendering.
func parseBlocks(source []byte) []block {
	md := goldmark.New()
	doc := md.Parser().Parse(gtext.NewReader(source))

	var blocks []block
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		b, ok := renderBlock(n, source)
		if !ok {
			continue
		}
		blocks = append(blocks, b)
	}
	return blocks
}

// renderBlock converts one top-level AST node back to a markdown fragment.
func renderBlock(n ast.Node, source []byte) (block, bool) {
	switch v := n.(type) {
	case *ast.Heading:
		line := strings.Repeat("#", v.Level) + " " + inlineText(v, source)
		return block{kind: kindHeading, level: v.Level, text: line}, true

	case *ast.Paragraph:
		t := inlineText(v, source)
		if t == "" {
			return block{}, false
		}
		return block{kind: kindParagraph, text: t}, true

	case *ast.Blockquote:
		t := renderBlockquote(v, source)
		if t == "" {
			return block{}, false
		}
		return block{kind: kindBlockQuote, text: t}, true

	case *ast.List:
		t := renderList(v, source)
		if t == "" {
			return block{}, false
		}
		return block{kind: kindList, text: t}, true

	case *ast.FencedCodeBlock:
		return block{kind: kindCode, text: renderCode(v.Info, v, source)}, true

	case *ast.CodeBlock:
		return block{kind: kindCode, text: renderCode(nil, v, source)}, true

	default:
		// HTML blocks and anything else keep their raw source lines.
		t := rawLines(n, source)
		if t == "" {
			return block{}, false
		}
		return block{kind: kindOther, text: t}, true
	}
}

// inlineText collects the rendered text of all inline descendants,
// preserving soft and hard line breaks inside paragraphs.
func inlineText(n ast.Node, source []byte) string {
	var sb strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.String:
			sb.Write(t.Value)
		default:
			sb.WriteString(inlineText(c, source))
		}
	}
	return strings.TrimSpace(sb.String())
}

// renderBlockquote renders "> " prefixed lines for every paragraph inside
// the quote.
func renderBlockquote(n ast.Node, source []byte) string {
	var parts []string
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t := inlineText(c, source); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	inner := strings.Join(parts, "\n")
	return "> " + strings.ReplaceAll(inner, "\n", "\n> ")
}

// renderList renders "* " bullet lines, flattening nested lists.
func renderList(n *ast.List, source []byte) string {
	var sb strings.Builder
	for item := n.FirstChild(); item != nil; item = item.NextSibling() {
		var itemText strings.Builder
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			if nested, ok := c.(*ast.List); ok {
				// Flush the current bullet before nested bullets.
				if itemText.Len() > 0 {
					sb.WriteString("* " + strings.TrimSpace(itemText.String()) + "\n")
					itemText.Reset()
				}
				if t := renderList(nested, source); t != "" {
					sb.WriteString(t + "\n")
				}
				continue
			}
			itemText.WriteString(inlineText(c, source))
		}
		if itemText.Len() > 0 {
			sb.WriteString("* " + strings.TrimSpace(itemText.String()) + "\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// renderCode re-fences a code block, keeping the info string when present.
func renderCode(info *ast.Text, n ast.Node, source []byte) string {
	var sb strings.Builder
	sb.WriteString("```")
	if info != nil {
		sb.Write(info.Segment.Value(source))
	}
	sb.WriteByte('\n')
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(source))
	}
	if !strings.HasSuffix(sb.String(), "\n") {
		sb.WriteByte('\n')
	}
	sb.WriteString("```")
	return sb.String()
}

// rawLines returns the raw source text covered by a block node.
func rawLines(n ast.Node, source []byte) string {
	lines := n.Lines()
	if lines == nil || lines.Len() == 0 {
		return ""
	}
	var sb strings.Builder
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(source))
	}
	return strings.TrimSpace(sb.String())
}
