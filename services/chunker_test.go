package services

import (
	"strings"
	"testing"
)

func TestChunkerRejectsBadConfig(t *testing.T) {
	if _, err := NewChunker(0, 0); err == nil {
		t.Fatalf("expected error for zero size")
	}
	if _, err := NewChunker(100, 100); err == nil {
		t.Fatalf("expected error for overlap == size")
	}
	if _, err := NewChunker(100, -1); err == nil {
		t.Fatalf("expected error for negative overlap")
	}
}

func TestChunkerEmptyInput(t *testing.T) {
	c, err := NewChunker(100, 10)
	if err != nil {
		t.Fatalf("NewChunker: %v", err)
	}
	if got := c.Chunk(""); len(got) != 0 {
		t.Fatalf("expected no chunks for empty input, got %d", len(got))
	}
	if got := c.Chunk("   \n\t  "); len(got) != 0 {
		t.Fatalf("expected no chunks for whitespace input, got %d", len(got))
	}
}

func TestChunkerShortInputSingleChunk(t *testing.T) {
	c, _ := NewChunker(100, 10)
	chunks := c.Chunk("short text")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != "short text" {
		t.Fatalf("unexpected chunk content: %q", chunks[0])
	}
}

func TestChunkerCoversAllText(t *testing.T) {
	c, _ := NewChunker(10, 3)
	text := strings.Repeat("abcdefghij", 5)
	spans := c.ChunkSpans(text)
	if len(spans) == 0 {
		t.Fatalf("expected chunks")
	}

	// Each chunk must sit at its declared offset, and the chunks together
	// must cover the whole text with no gaps.
	runes := []rune(text)
	covered := 0
	for _, s := range spans {
		if s.Start > covered {
			t.Fatalf("gap before offset %d (covered %d)", s.Start, covered)
		}
		chunkRunes := []rune(s.Text)
		if got := string(runes[s.Start : s.Start+len(chunkRunes)]); got != s.Text {
			t.Fatalf("chunk at %d does not match source: %q vs %q", s.Start, s.Text, got)
		}
		if end := s.Start + len(chunkRunes); end > covered {
			covered = end
		}
	}
	if covered != len(runes) {
		t.Fatalf("chunks cover %d of %d runes", covered, len(runes))
	}
}

func TestChunkerOverlap(t *testing.T) {
	c, _ := NewChunker(10, 4)
	text := "0123456789abcdefghij"
	spans := c.ChunkSpans(text)
	if len(spans) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(spans))
	}

	first := []rune(spans[0].Text)
	second := []rune(spans[1].Text)
	tail := string(first[len(first)-4:])
	head := string(second[:4])
	if tail != head {
		t.Fatalf("overlap mismatch: tail %q, next head %q", tail, head)
	}
	if spans[1].Start != 6 {
		t.Fatalf("expected second chunk at offset 6, got %d", spans[1].Start)
	}
}

func TestChunkerDeterministic(t *testing.T) {
	c, _ := NewChunker(50, 8)
	text := strings.Repeat("the quick brown fox jumps over the lazy dog ", 20)
	a := c.Chunk(text)
	b := c.Chunk(text)
	if len(a) != len(b) {
		t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chunk %d differs between runs", i)
		}
	}
}

func TestChunkerMultibyte(t *testing.T) {
	c, _ := NewChunker(5, 0)
	text := "日本語のテキストです"
	spans := c.ChunkSpans(text)
	if len(spans) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(spans))
	}
	if spans[0].Text != "日本語のテ" {
		t.Fatalf("unexpected first chunk: %q", spans[0].Text)
	}
}
