package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"docqa-backend/models"
)

type fakeExtractor struct {
	result *ExtractionResult
	err    error
}

func (f *fakeExtractor) ExtractText(ctx context.Context, path, filename string) (*ExtractionResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeBatchEmbedder struct {
	err    error
	called bool
}

func (f *fakeBatchEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.called = true
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(i), 1.0}
	}
	return vectors, nil
}

type capturingIndex struct {
	chunks []models.DocumentChunk
	err    error
}

func (c *capturingIndex) AddChunks(ctx context.Context, chunks []models.DocumentChunk) error {
	if c.err != nil {
		return c.err
	}
	c.chunks = append(c.chunks, chunks...)
	return nil
}

func (c *capturingIndex) DenseSearch(ctx context.Context, userID string, v []float32, k int) ([]models.HybridSearchResult, error) {
	return nil, nil
}

func (c *capturingIndex) KeywordSearch(ctx context.Context, userID, query string, k int) ([]models.HybridSearchResult, error) {
	return nil, nil
}

func (c *capturingIndex) DeleteDocument(ctx context.Context, userID, documentID string) error {
	return nil
}

type recordingStatusStore struct {
	states []IngestionState
}

func (r *recordingStatusStore) Set(ctx context.Context, documentID string, state IngestionState) error {
	r.states = append(r.states, state)
	return nil
}

func (r *recordingStatusStore) Get(ctx context.Context, documentID string) (*IngestionState, bool, error) {
	if len(r.states) == 0 {
		return nil, false, nil
	}
	last := r.states[len(r.states)-1]
	return &last, true, nil
}

type recordingDocuments struct {
	statuses   []string
	lastError  string
	completed  bool
	chunkCount int
	totalChars int
}

func (r *recordingDocuments) UpdateStatus(ctx context.Context, userID, documentID, status, errorMessage string) error {
	r.statuses = append(r.statuses, status)
	r.lastError = errorMessage
	return nil
}

func (r *recordingDocuments) RecordCompletion(ctx context.Context, userID, documentID string, chunkCount, totalCharacters int, elapsed time.Duration) error {
	r.completed = true
	r.chunkCount = chunkCount
	r.totalChars = totalCharacters
	return nil
}

func newTestPipeline(extractor Extractor, embedder BatchEmbedder, index IndexStore) (*Pipeline, *recordingStatusStore, *recordingDocuments) {
	chunker, _ := NewChunker(50, 10)
	status := &recordingStatusStore{}
	documents := &recordingDocuments{}
	p := NewPipeline(extractor, chunker, embedder, index, status, documents, nil)
	return p, status, documents
}

func testJob() IngestJob {
	return IngestJob{
		UserID:     "user-1",
		DocumentID: "doc-1",
		Filename:   "report.pdf",
		FilePath:   "/nonexistent/report.pdf",
	}
}

func TestPipelineSuccessfulRun(t *testing.T) {
	extractor := &fakeExtractor{result: &ExtractionResult{
		Text:  strings.Repeat("searchable content ", 20),
		Pages: 1,
	}}
	index := &capturingIndex{}
	p, status, documents := newTestPipeline(extractor, &fakeBatchEmbedder{}, index)

	if err := p.Ingest(context.Background(), testJob()); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if len(index.chunks) == 0 {
		t.Fatalf("no chunks indexed")
	}
	for i, chunk := range index.chunks {
		if chunk.UserID != "user-1" {
			t.Fatalf("chunk %d missing owner scope: %+v", i, chunk)
		}
		if chunk.Order != i {
			t.Fatalf("chunk %d has order %d", i, chunk.Order)
		}
		if len(chunk.Vector) == 0 {
			t.Fatalf("chunk %d has no vector", i)
		}
	}

	if !documents.completed {
		t.Fatalf("completion was not recorded")
	}
	if documents.chunkCount != len(index.chunks) {
		t.Fatalf("chunk count %d, indexed %d", documents.chunkCount, len(index.chunks))
	}

	// Progress must be monotone through a successful run.
	last := -1
	for _, s := range status.states {
		if s.Progress < last {
			t.Fatalf("progress decreased: %d -> %d at stage %s", last, s.Progress, s.Stage)
		}
		last = s.Progress
	}
	final := status.states[len(status.states)-1]
	if final.Stage != StageComplete || final.Progress != 100 {
		t.Fatalf("final state: %+v", final)
	}
}

func TestPipelineAbortsOnEmptyExtraction(t *testing.T) {
	extractor := &fakeExtractor{result: &ExtractionResult{Text: "   \n  "}}
	embedder := &fakeBatchEmbedder{}
	p, status, documents := newTestPipeline(extractor, embedder, &capturingIndex{})

	err := p.Ingest(context.Background(), testJob())
	if err == nil {
		t.Fatalf("expected abort")
	}
	if err.Error() != MsgNoTextExtracted {
		t.Fatalf("abort message: got %q, want %q", err.Error(), MsgNoTextExtracted)
	}
	if embedder.called {
		t.Fatalf("embedding stage must not run after extraction abort")
	}
	if documents.lastError != MsgNoTextExtracted {
		t.Fatalf("durable error message: %q", documents.lastError)
	}

	final := status.states[len(status.states)-1]
	if final.Stage != StageError || final.Progress != 0 {
		t.Fatalf("error state must reset progress: %+v", final)
	}
	for _, s := range status.states {
		if s.Stage == StageChunking || s.Stage == StageEmbedding || s.Stage == StageStoring {
			t.Fatalf("stage %s entered after abort", s.Stage)
		}
	}
}

// blankChunker stands in for a chunker whose output all trims to nothing.
type blankChunker struct{}

func (blankChunker) ChunkSpans(text string) []ChunkSpan {
	return []ChunkSpan{{Text: "   "}, {Text: "\n\t"}}
}

func TestPipelineAbortsWhenNoValidChunks(t *testing.T) {
	extractor := &fakeExtractor{result: &ExtractionResult{Text: "content"}}
	embedder := &fakeBatchEmbedder{}
	status := &recordingStatusStore{}
	documents := &recordingDocuments{}
	p := NewPipeline(extractor, blankChunker{}, embedder, &capturingIndex{}, status, documents, nil)

	err := p.Ingest(context.Background(), testJob())
	if err == nil {
		t.Fatalf("expected abort")
	}
	if err.Error() != MsgNoValidChunks {
		t.Fatalf("abort message: got %q, want %q", err.Error(), MsgNoValidChunks)
	}
	if embedder.called {
		t.Fatalf("embedding stage must not run without valid chunks")
	}
	if documents.lastError != MsgNoValidChunks {
		t.Fatalf("durable error message: %q", documents.lastError)
	}
	for _, s := range status.states {
		if s.Stage == StageEmbedding || s.Stage == StageStoring {
			t.Fatalf("stage %s entered after abort", s.Stage)
		}
	}
}

func TestPipelineFailsOnEmbeddingError(t *testing.T) {
	extractor := &fakeExtractor{result: &ExtractionResult{Text: "plenty of real content here"}}
	embedder := &fakeBatchEmbedder{err: errors.New("quota exhausted")}
	index := &capturingIndex{}
	p, status, documents := newTestPipeline(extractor, embedder, index)

	err := p.Ingest(context.Background(), testJob())
	if err == nil {
		t.Fatalf("expected failure")
	}
	if len(index.chunks) != 0 {
		t.Fatalf("nothing should be indexed after embedding failure")
	}
	if got := documents.statuses[len(documents.statuses)-1]; got != models.DocStatusFailed {
		t.Fatalf("durable status: %q", got)
	}
	final := status.states[len(status.states)-1]
	if final.Stage != StageError {
		t.Fatalf("tracker stage: %s", final.Stage)
	}
}

func TestPipelineFailsOnIndexWriteError(t *testing.T) {
	extractor := &fakeExtractor{result: &ExtractionResult{Text: "plenty of real content here"}}
	index := &capturingIndex{err: errors.New("insert failed")}
	p, _, documents := newTestPipeline(extractor, &fakeBatchEmbedder{}, index)

	err := p.Ingest(context.Background(), testJob())
	if err == nil {
		t.Fatalf("expected failure")
	}
	var iwe *IndexWriteError
	if !errors.As(err, &iwe) {
		t.Fatalf("expected IndexWriteError, got %T", err)
	}
	if documents.completed {
		t.Fatalf("completion recorded despite index failure")
	}
}

func TestPipelineRemovesStagedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "staged.txt")
	if err := os.WriteFile(path, []byte("real file content"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	extractor := &fakeExtractor{result: &ExtractionResult{Text: "real file content"}}
	p, _, _ := newTestPipeline(extractor, &fakeBatchEmbedder{}, &capturingIndex{})

	job := testJob()
	job.FilePath = path
	job.RemoveFile = true
	if err := p.Ingest(context.Background(), job); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("staged file was not removed")
	}
}

func TestPipelineRemovesStagedFileOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "staged.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	extractor := &fakeExtractor{err: &ExtractionError{Path: path, Err: errors.New("corrupt")}}
	p, _, _ := newTestPipeline(extractor, &fakeBatchEmbedder{}, &capturingIndex{})

	job := testJob()
	job.FilePath = path
	job.RemoveFile = true
	if err := p.Ingest(context.Background(), job); err == nil {
		t.Fatalf("expected failure")
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("staged file must be removed on failure too")
	}
}

func TestPipelineRecoversFromPanic(t *testing.T) {
	extractor := &panickingExtractor{}
	p, status, _ := newTestPipeline(extractor, &fakeBatchEmbedder{}, &capturingIndex{})

	err := p.Ingest(context.Background(), testJob())
	if err == nil {
		t.Fatalf("panic must surface as an error")
	}
	final := status.states[len(status.states)-1]
	if final.Stage != StageError {
		t.Fatalf("panic must be recorded as error state, got %s", final.Stage)
	}
}

type panickingExtractor struct{}

func (p *panickingExtractor) ExtractText(ctx context.Context, path, filename string) (*ExtractionResult, error) {
	panic("extractor blew up")
}

func TestPipelinePageAttribution(t *testing.T) {
	// Two pages: page 1 at offset 0, page 2 at offset 30.
	text := strings.Repeat("a", 30) + strings.Repeat("b", 30)
	extractor := &fakeExtractor{result: &ExtractionResult{
		Text:        text,
		Pages:       2,
		PageOffsets: []int{0, 30},
	}}
	index := &capturingIndex{}
	chunker, _ := NewChunker(30, 0)
	status := &recordingStatusStore{}
	documents := &recordingDocuments{}
	p := NewPipeline(extractor, chunker, &fakeBatchEmbedder{}, index, status, documents, nil)

	if err := p.Ingest(context.Background(), testJob()); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(index.chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(index.chunks))
	}
	if index.chunks[0].Page == nil || *index.chunks[0].Page != 1 {
		t.Fatalf("first chunk page: %v", index.chunks[0].Page)
	}
	if index.chunks[1].Page == nil || *index.chunks[1].Page != 2 {
		t.Fatalf("second chunk page: %v", index.chunks[1].Page)
	}
}
