package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"docqa-backend/internal/logger"
	"docqa-backend/internal/telemetry"
	"docqa-backend/models"
)

// BatchEmbedder turns chunk texts into dense vectors, one vector per input
// in the same order. Satisfied by ai.Embedder.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// TextChunker splits extracted text into ordered spans. Satisfied by
// Chunker.
type TextChunker interface {
	ChunkSpans(text string) []ChunkSpan
}

// DocumentRecorder is the durable tier the pipeline writes to. Satisfied by
// DocumentRepo.
type DocumentRecorder interface {
	UpdateStatus(ctx context.Context, userID, documentID, status, errorMessage string) error
	RecordCompletion(ctx context.Context, userID, documentID string, chunkCount, totalCharacters int, elapsed time.Duration) error
}

// IngestJob describes one document to run through the pipeline.
type IngestJob struct {
	UserID     string
	DocumentID string
	Filename   string
	FilePath   string
	// RemoveFile deletes the staged upload when the run finishes,
	// regardless of outcome.
	RemoveFile bool
}

// Pipeline runs extraction, chunking, embedding and indexing as strictly
// gated stages. A stage only starts after the previous one produced usable
// output; any failure stops the run and is recorded in both status tiers.
type Pipeline struct {
	extractor Extractor
	chunker   TextChunker
	embedder  BatchEmbedder
	index     IndexStore
	status    StatusStore
	documents DocumentRecorder
	metrics   *telemetry.Metrics
}

func NewPipeline(extractor Extractor, chunker TextChunker, embedder BatchEmbedder, index IndexStore, status StatusStore, documents DocumentRecorder, metrics *telemetry.Metrics) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		status:    status,
		documents: documents,
		metrics:   metrics,
	}
}

// Ingest processes one document end to end. The returned error is the stage
// failure, already recorded in both status tiers before returning.
func (p *Pipeline) Ingest(ctx context.Context, job IngestJob) (err error) {
	start := time.Now()

	ctx, span := otel.Tracer("docqa-backend").Start(ctx, "pipeline.ingest")
	defer span.End()
	span.SetAttributes(attribute.String("document.id", job.DocumentID))

	if job.RemoveFile {
		defer func() {
			if removeErr := os.Remove(job.FilePath); removeErr != nil && !os.IsNotExist(removeErr) {
				logger.Warn("Failed to remove staged upload", "path", job.FilePath, "error", removeErr)
			}
		}()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ingestion panicked: %v", r)
			p.fail(ctx, job, start, err)
		}
	}()

	p.setStage(ctx, job, StageLoading)
	if updErr := p.documents.UpdateStatus(ctx, job.UserID, job.DocumentID, models.DocStatusProcessing, ""); updErr != nil {
		logger.Warn("Failed to mark document processing", "document_id", job.DocumentID, "error", updErr)
	}

	extracted, err := p.extractor.ExtractText(ctx, job.FilePath, job.Filename)
	if err != nil {
		return p.fail(ctx, job, start, err)
	}
	if strings.TrimSpace(extracted.Text) == "" {
		return p.fail(ctx, job, start, errors.New(MsgNoTextExtracted))
	}

	p.setStage(ctx, job, StageChunking)
	spans := p.chunker.ChunkSpans(extracted.Text)
	valid := spans[:0]
	for _, s := range spans {
		if strings.TrimSpace(s.Text) != "" {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		return p.fail(ctx, job, start, &ChunkingError{DocumentID: job.DocumentID})
	}

	p.setStage(ctx, job, StageEmbedding)
	texts := make([]string, len(valid))
	for i, s := range valid {
		texts[i] = s.Text
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return p.fail(ctx, job, start, fmt.Errorf("embedding failed: %w", err))
	}
	if len(vectors) != len(valid) {
		return p.fail(ctx, job, start, fmt.Errorf("embedding returned %d vectors for %d chunks", len(vectors), len(valid)))
	}

	p.setStage(ctx, job, StageStoring)
	// Chunk offsets are relative to the trimmed text; page offsets are
	// relative to the raw extraction. Shift by the trimmed leading runes.
	leadingTrim := utf8.RuneCountInString(extracted.Text) -
		utf8.RuneCountInString(strings.TrimLeftFunc(extracted.Text, unicode.IsSpace))
	chunks := make([]models.DocumentChunk, len(valid))
	for i, s := range valid {
		chunks[i] = models.DocumentChunk{
			ChunkID:    uuid.New().String(),
			UserID:     job.UserID,
			DocumentID: job.DocumentID,
			Filename:   job.Filename,
			Order:      i,
			Text:       s.Text,
			Page:       pageForOffset(extracted.PageOffsets, s.Start+leadingTrim),
			Vector:     vectors[i],
		}
	}
	if err := p.index.AddChunks(ctx, chunks); err != nil {
		return p.fail(ctx, job, start, err)
	}

	elapsed := time.Since(start)
	totalCharacters := utf8.RuneCountInString(extracted.Text)
	if recErr := p.documents.RecordCompletion(ctx, job.UserID, job.DocumentID, len(chunks), totalCharacters, elapsed); recErr != nil {
		logger.Warn("Failed to record completion", "document_id", job.DocumentID, "error", recErr)
	}
	p.setStage(ctx, job, StageComplete)
	if p.metrics != nil {
		p.metrics.RecordIngestion("completed", elapsed.Seconds())
	}

	logger.Info("Document ingested",
		"document_id", job.DocumentID,
		"chunks", len(chunks),
		"characters", totalCharacters,
		"duration_ms", elapsed.Milliseconds())
	return nil
}

func (p *Pipeline) setStage(ctx context.Context, job IngestJob, stage IngestionStage) {
	if err := p.status.Set(ctx, job.DocumentID, NewState(stage, "")); err != nil {
		logger.Warn("Failed to update ingestion status", "document_id", job.DocumentID, "stage", string(stage), "error", err)
	}
}

// fail records the failure in both tiers and returns the original error.
func (p *Pipeline) fail(ctx context.Context, job IngestJob, start time.Time, cause error) error {
	message := cause.Error()
	if err := p.status.Set(ctx, job.DocumentID, NewState(StageError, message)); err != nil {
		logger.Warn("Failed to record error status", "document_id", job.DocumentID, "error", err)
	}
	if err := p.documents.UpdateStatus(ctx, job.UserID, job.DocumentID, models.DocStatusFailed, message); err != nil {
		logger.Warn("Failed to record document failure", "document_id", job.DocumentID, "error", err)
	}
	if p.metrics != nil {
		p.metrics.RecordIngestion("failed", time.Since(start).Seconds())
	}
	logger.Error("Document ingestion failed", "document_id", job.DocumentID, "error", cause)
	return cause
}

// pageForOffset maps a rune offset in the extracted text to its 1-based
// page number. Returns nil when the source format carries no page
// boundaries.
func pageForOffset(pageOffsets []int, offset int) *int {
	if len(pageOffsets) == 0 {
		return nil
	}
	page := 1
	for i, boundary := range pageOffsets {
		if offset >= boundary {
			page = i + 1
		} else {
			break
		}
	}
	return &page
}
