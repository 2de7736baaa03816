package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestExtractPlainText(t *testing.T) {
	path := writeTempFile(t, "notes.txt", "line one\nline two\n")
	e := NewFileExtractor()

	result, err := e.ExtractText(context.Background(), path, "notes.txt")
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if result.Text != "line one\nline two\n" {
		t.Fatalf("unexpected text: %q", result.Text)
	}
	if result.Pages != 1 {
		t.Fatalf("plain text must report a single page, got %d", result.Pages)
	}
}

func TestExtractMarkdownFallsBackToPlainText(t *testing.T) {
	path := writeTempFile(t, "readme.md", "# Title\n\nBody text.")
	e := NewFileExtractor()

	result, err := e.ExtractText(context.Background(), path, "readme.md")
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if !strings.Contains(result.Text, "Body text.") {
		t.Fatalf("markdown content lost: %q", result.Text)
	}
}

func TestExtractHTMLStripsScriptsAndStyles(t *testing.T) {
	html := `<html><head><style>body { color: red }</style></head>
<body>
  <script>alert("nope")</script>
  <h1>Heading</h1>
  <p>Paragraph   text.</p>
  <noscript>enable js</noscript>
</body></html>`
	path := writeTempFile(t, "page.html", html)
	e := NewFileExtractor()

	result, err := e.ExtractText(context.Background(), path, "page.html")
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if strings.Contains(result.Text, "alert") || strings.Contains(result.Text, "color: red") {
		t.Fatalf("script/style content leaked: %q", result.Text)
	}
	if strings.Contains(result.Text, "enable js") {
		t.Fatalf("noscript content leaked: %q", result.Text)
	}
	if !strings.Contains(result.Text, "Heading") || !strings.Contains(result.Text, "Paragraph   text.") {
		t.Fatalf("visible text lost: %q", result.Text)
	}
}

func TestExtractMissingFile(t *testing.T) {
	e := NewFileExtractor()
	_, err := e.ExtractText(context.Background(), "/nonexistent/file.txt", "file.txt")
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
	if _, ok := err.(*ExtractionError); !ok {
		t.Fatalf("expected *ExtractionError, got %T", err)
	}
}

func TestExtractHonorsCancelledContext(t *testing.T) {
	path := writeTempFile(t, "notes.txt", "content")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewFileExtractor()
	if _, err := e.ExtractText(ctx, path, "notes.txt"); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestCollapseWhitespace(t *testing.T) {
	in := "  first  \n\n\n   \n  second\n"
	got := collapseWhitespace(in)
	if got != "first\nsecond" {
		t.Fatalf("collapseWhitespace: %q", got)
	}
}

func TestPageAccumulatorOffsetsMatchPageStarts(t *testing.T) {
	var pages pageAccumulator
	pages.add("first page")
	pages.add("second page")

	if len(pages.offsets) != 2 {
		t.Fatalf("expected 2 offsets, got %d", len(pages.offsets))
	}
	text := []rune(pages.builder.String())
	for i, want := range []string{"first page", "second page"} {
		got := string(text[pages.offsets[i] : pages.offsets[i]+len([]rune(want))])
		if got != want {
			t.Fatalf("offset %d points at %q, want %q", i, got, want)
		}
	}
}

func TestPageAccumulatorSkippedPageLeavesNoBoundary(t *testing.T) {
	// An unreadable page is never added, so it must not record an offset
	// that would shift attribution for every later page.
	var pages pageAccumulator
	pages.add("page one")
	// page two fails to read
	pages.add("page three")

	if len(pages.offsets) != 2 {
		t.Fatalf("expected boundaries only for readable pages, got %d", len(pages.offsets))
	}
	text := []rune(pages.builder.String())
	got := string(text[pages.offsets[1] : pages.offsets[1]+len([]rune("page three"))])
	if got != "page three" {
		t.Fatalf("second boundary points at %q, want %q", got, "page three")
	}
}

func TestPageAccumulatorCountsRunes(t *testing.T) {
	var pages pageAccumulator
	pages.add("日本語テキスト")
	pages.add("second")

	if want := len([]rune("日本語テキスト")) + 1; pages.offsets[1] != want {
		t.Fatalf("multibyte page: offset %d, want %d", pages.offsets[1], want)
	}
}
