package models

import (
	"time"
)

// Document is the durable record for an uploaded file and its ingestion
// lifecycle. It is written only by the ingestion pipeline while processing
// and is read-only afterwards, except when a re-ingestion is triggered.
type Document struct {
	DocumentID       string     `bson:"document_id" json:"document_id"`
	UserID           string     `bson:"user_id" json:"user_id"`
	Filename         string     `bson:"filename" json:"filename"`
	OriginalFilename string     `bson:"original_filename" json:"original_filename"`
	FilePath         string     `bson:"file_path" json:"-"`
	FileSize         int64      `bson:"file_size" json:"file_size"`
	ContentType      string     `bson:"content_type" json:"content_type"`
	Status           string     `bson:"status" json:"status"`
	ErrorMessage     string     `bson:"error_message,omitempty" json:"error_message,omitempty"`
	ChunkCount       int        `bson:"chunk_count" json:"chunk_count"`
	TotalCharacters  int        `bson:"total_characters" json:"total_characters"`
	ProcessingTimeMS int64      `bson:"processing_time_ms,omitempty" json:"processing_time_ms,omitempty"`
	CreatedAt        time.Time  `bson:"created_at" json:"created_at"`
	CompletedAt      *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// Durable document status values. These are coarser than the live ingestion
// stages: polling clients read the stage from the status tracker, crash
// recovery reads this field.
const (
	DocStatusQueued     = "queued"
	DocStatusProcessing = "processing"
	DocStatusCompleted  = "completed"
	DocStatusFailed     = "failed"
)

// UploadResponse is returned after a successful upload request.
type UploadResponse struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Status     string `json:"status"`
	TaskID     string `json:"task_id,omitempty"`
	Message    string `json:"message"`
}
