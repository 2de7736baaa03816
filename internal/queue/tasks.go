package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"docqa-backend/internal/logger"
	"docqa-backend/services"
)

const TaskIngestDocument = "document:ingest"

type IngestPayload struct {
	UserID     string `json:"user_id"`
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	FilePath   string `json:"file_path"`
}

// NewIngestTask builds the queued ingestion task for one uploaded document.
func NewIngestTask(userID, documentID, filename, filePath string) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestPayload{
		UserID:     userID,
		DocumentID: documentID,
		Filename:   filename,
		FilePath:   filePath,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskIngestDocument, payload, ingestTaskOptions()...), nil
}

// ingestTaskOptions: a failed ingestion has already recorded the failure in
// both status tiers and removed the staged file, so no retry budget exists.
func ingestTaskOptions() []asynq.Option {
	return []asynq.Option{
		asynq.MaxRetry(0),
		asynq.Timeout(15 * time.Minute),
		asynq.Queue("ingestion"),
	}
}

// TaskProcessor dispatches queued tasks into the ingestion pipeline.
type TaskProcessor struct {
	pipeline *services.Pipeline
}

func NewTaskProcessor(pipeline *services.Pipeline) *TaskProcessor {
	return &TaskProcessor{pipeline: pipeline}
}

func (p *TaskProcessor) HandleIngestDocument(ctx context.Context, t *asynq.Task) error {
	var payload IngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	logger.Info("Ingestion task started",
		"document_id", payload.DocumentID,
		"filename", payload.Filename)

	err := p.pipeline.Ingest(ctx, services.IngestJob{
		UserID:     payload.UserID,
		DocumentID: payload.DocumentID,
		Filename:   payload.Filename,
		FilePath:   payload.FilePath,
		RemoveFile: true,
	})
	if err != nil {
		// The pipeline already recorded the failure in both status
		// tiers; retrying would re-run against a removed file.
		return fmt.Errorf("ingestion failed: %v: %w", err, asynq.SkipRetry)
	}
	return nil
}

// NewMux registers all task handlers.
func NewMux(processor *TaskProcessor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskIngestDocument, processor.HandleIngestDocument)
	return mux
}
