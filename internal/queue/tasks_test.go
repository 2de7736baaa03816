package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
)

func TestNewIngestTaskPayload(t *testing.T) {
	task, err := NewIngestTask("user-1", "doc-1", "report.pdf", "/tmp/doc-1.pdf")
	if err != nil {
		t.Fatalf("NewIngestTask: %v", err)
	}
	if task.Type() != TaskIngestDocument {
		t.Fatalf("task type %q, want %q", task.Type(), TaskIngestDocument)
	}

	var payload IngestPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.UserID != "user-1" || payload.DocumentID != "doc-1" || payload.FilePath != "/tmp/doc-1.pdf" {
		t.Fatalf("payload fields lost: %+v", payload)
	}
}

func TestIngestTaskCarriesNoRetryBudget(t *testing.T) {
	var sawMaxRetry, sawQueue bool
	for _, opt := range ingestTaskOptions() {
		switch opt.Type() {
		case asynq.MaxRetryOpt:
			sawMaxRetry = true
			if retries := opt.Value().(int); retries != 0 {
				t.Fatalf("ingestion failures are terminal, got %d retries", retries)
			}
		case asynq.QueueOpt:
			sawQueue = true
			if name := opt.Value().(string); name != "ingestion" {
				t.Fatalf("queue %q, want %q", name, "ingestion")
			}
		}
	}
	if !sawMaxRetry || !sawQueue {
		t.Fatalf("expected explicit retry and queue options")
	}
}

func TestHandleIngestDocumentRejectsBadPayload(t *testing.T) {
	processor := NewTaskProcessor(nil)
	task := asynq.NewTask(TaskIngestDocument, []byte("not json"))

	err := processor.HandleIngestDocument(context.Background(), task)
	if err == nil {
		t.Fatalf("expected error for malformed payload")
	}
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("malformed payload must not be retried: %v", err)
	}
}
