package services

import (
	"fmt"
	"strings"
)

// Chunker splits extracted text into bounded passages with a trailing
// overlap repeated at the start of the next chunk. Splitting is purely
// positional, so identical input and configuration always produce identical
// chunk texts and ordering.
type Chunker struct {
	size    int // target maximum chunk length in characters
	overlap int // trailing characters repeated at the next chunk start
}

// ChunkSpan is one chunk together with its rune offset into the normalized
// source text. The offset lets the pipeline attribute a page number to the
// chunk without re-scanning the text.
type ChunkSpan struct {
	Text  string
	Start int
}

func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be in [0, size), size %d", overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Chunk returns the ordered chunk texts for the input. A text shorter than
// the configured size yields exactly one chunk; only input that is empty
// after normalization yields an empty result.
func (c *Chunker) Chunk(text string) []string {
	spans := c.ChunkSpans(text)
	chunks := make([]string, 0, len(spans))
	for _, s := range spans {
		chunks = append(chunks, s.Text)
	}
	return chunks
}

// ChunkSpans is Chunk with source offsets.
func (c *Chunker) ChunkSpans(text string) []ChunkSpan {
	normalized := strings.TrimSpace(text)
	if normalized == "" {
		return nil
	}

	runes := []rune(normalized)
	step := c.size - c.overlap

	var spans []ChunkSpan
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		spans = append(spans, ChunkSpan{
			Text:  string(runes[start:end]),
			Start: start,
		})
		if end == len(runes) {
			break
		}
	}
	return spans
}
