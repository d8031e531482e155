package ingest

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Block is one heading-scoped text block produced by decomposition.
// HeadingPath is the concatenation of every open ancestor heading's rendered
// line, outer to inner, each followed by a newline; content before the first
// heading has an empty path. Body is the merged text of the scope.
type Block struct {
	HeadingPath string
	Body        string
}

// Content returns the persisted form: heading path prefix + body.
func (b Block) Content() string {
	return b.HeadingPath + b.Body
}

// scopeFrame is one open heading scope during decomposition. The frame at
// the bottom of the stack is the document root (level 0, no heading line).
type scopeFrame struct {
	level   int
	heading string   // rendered heading line, no trailing newline
	pending []string // accumulated non-heading fragments
}

// Decomposer splits a markdown document into an ordered list of
// heading-scoped blocks.
//
// It walks the parsed top-level blocks once, maintaining an explicit stack
// of open scope frames. A heading at level L first flushes the pending text
// of every frame it closes (level >= L, innermost first), then opens a new
// frame. Non-heading blocks accumulate on the innermost open frame, so
// consecutive siblings under one scope merge into a single block. Empty
// buffers are never emitted.
type Decomposer struct{}

// NewDecomposer creates a Decomposer.
func NewDecomposer() *Decomposer {
	return &Decomposer{}
}

// Decompose parses markdown and returns its heading-scoped blocks in source
// reading order. Input is normalized to NFC before parsing.
func (d *Decomposer) Decompose(markdown string) []Block {
	markdown = norm.NFC.String(markdown)
	blocks := parseBlocks([]byte(markdown))

	// Root frame: level 0 is shallower than any heading, so it is never
	// popped and collects content before the first heading.
	stack := []scopeFrame{{level: 0}}
	var out []Block

	headingPath := func(frames []scopeFrame) string {
		var sb strings.Builder
		for _, f := range frames {
			if f.heading == "" {
				continue
			}
			sb.WriteString(f.heading)
			sb.WriteByte('\n')
		}
		return sb.String()
	}

	// flushTop emits the innermost frame's pending text, prefixed with the
	// path of every open heading including its own.
	flushTop := func() {
		top := &stack[len(stack)-1]
		if len(top.pending) == 0 {
			return
		}
		out = append(out, Block{
			HeadingPath: headingPath(stack),
			Body:        strings.Join(top.pending, "\n"),
		})
		top.pending = nil
	}

	for _, blk := range blocks {
		if blk.kind != kindHeading {
			top := &stack[len(stack)-1]
			top.pending = append(top.pending, blk.text)
			continue
		}

		// A heading closes every open scope at its level or deeper; this
		// yields correct nesting even when heading levels are skipped.
		for len(stack) > 1 && stack[len(stack)-1].level >= blk.level {
			flushTop()
			stack = stack[:len(stack)-1]
		}
		flushTop()

		stack = append(stack, scopeFrame{level: blk.level, heading: blk.text})
	}

	// End of document: flush remaining scopes, innermost first.
	for len(stack) > 0 {
		flushTop()
		stack = stack[:len(stack)-1]
	}

	return out
}
