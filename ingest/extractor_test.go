package ingest

import (
	"strings"
	"testing"
)

func TestContentTypeFromExtension(t *testing.T) {
	tests := []struct {
		ext  string
		want ContentType
	}{
		{"md", TypeMarkdown},
		{"markdown", TypeMarkdown},
		{"MD", TypeMarkdown},
		{"html", TypeHTML},
		{"htm", TypeHTML},
		{"pdf", TypePDF},
		{"txt", TypePlainText},
		{"", TypePlainText},
		{"docx", TypePlainText},
	}
	for _, tt := range tests {
		if got := ContentTypeFromExtension(tt.ext); got != tt.want {
			t.Errorf("ContentTypeFromExtension(%q) = %q, want %q", tt.ext, got, tt.want)
		}
	}
}

func TestExtractorFor(t *testing.T) {
	if _, ok := ExtractorFor(TypeHTML).(HTMLExtractor); !ok {
		t.Error("expected HTMLExtractor for text/html")
	}
	if _, ok := ExtractorFor(TypePDF).(PDFExtractor); !ok {
		t.Error("expected PDFExtractor for application/pdf")
	}
	if _, ok := ExtractorFor(TypeMarkdown).(PlainTextExtractor); !ok {
		t.Error("expected PlainTextExtractor for markdown")
	}
}

func TestPlainTextExtractor(t *testing.T) {
	in := "# heading\n\nbody\n"
	out, err := PlainTextExtractor{}.Extract([]byte(in))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if out != in {
		t.Errorf("content changed: %q", out)
	}
}

func TestStripHTMLRemovesTags(t *testing.T) {
	in := "<html><body><h1>Title</h1><p>Hello <b>world</b>.</p></body></html>"
	out := StripHTML(in)
	if strings.Contains(out, "<") || strings.Contains(out, ">") {
		t.Fatalf("tags survived: %q", out)
	}
	if !strings.Contains(out, "Title") || !strings.Contains(out, "Hello") || !strings.Contains(out, "world") {
		t.Errorf("text lost: %q", out)
	}
}

func TestStripHTMLDropsScriptAndStyle(t *testing.T) {
	in := "<p>keep</p><script>var x = 1;</script><style>p { color: red }</style><p>also keep</p>"
	out := StripHTML(in)
	if strings.Contains(out, "var x") || strings.Contains(out, "color") {
		t.Fatalf("script or style body survived: %q", out)
	}
	if !strings.Contains(out, "keep") || !strings.Contains(out, "also keep") {
		t.Errorf("text lost: %q", out)
	}
}

func TestStripHTMLDecodesEntities(t *testing.T) {
	out := StripHTML("<p>a &amp; b &lt;c&gt;</p>")
	if !strings.Contains(out, "a & b <c>") {
		t.Errorf("entities not decoded: %q", out)
	}
}

func TestCollapseBlankLines(t *testing.T) {
	out := collapseBlankLines("a\n\n\n\nb\n  \nc\n")
	if out != "a\n\nb\n\nc" {
		t.Errorf("collapsed = %q", out)
	}
}
