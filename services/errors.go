package services

import "fmt"

// Error messages recorded on the status tracker when an ingestion run aborts.
const (
	MsgNoTextExtracted = "No text extracted from document."
	MsgNoValidChunks   = "No valid chunks generated from document."
)

// ExtractionError means no text was obtainable from the source file. Fatal
// to the ingestion run; no automatic retry.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed for %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("extraction failed for %s", e.Path)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ChunkingError means extraction succeeded but produced no usable chunks.
type ChunkingError struct {
	DocumentID string
}

// Error returns the exact abort message recorded on the status tracker.
func (e *ChunkingError) Error() string {
	return MsgNoValidChunks
}

// IndexWriteError means the embedding/storage call failed; the document is
// marked failed with a bounded error message.
type IndexWriteError struct {
	DocumentID string
	Err        error
}

func (e *IndexWriteError) Error() string {
	return fmt.Sprintf("index write failed for document %s: %v", e.DocumentID, e.Err)
}

func (e *IndexWriteError) Unwrap() error { return e.Err }

// RetrievalError is recovered locally: the failing source contributes an
// empty result set instead of failing the whole query.
type RetrievalError struct {
	Source string // "dense" or "bm25"
	Err    error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("%s retrieval failed: %v", e.Source, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// GenerationError is not recovered locally; it surfaces to the caller as a
// failure of the whole query.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("response generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
