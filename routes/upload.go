package routes

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"docqa-backend/internal/config"
	"docqa-backend/internal/logger"
	"docqa-backend/internal/queue"
	"docqa-backend/middleware"
	"docqa-backend/models"
	"docqa-backend/services"
	"docqa-backend/utils"
)

type UploadDeps struct {
	Config    *config.Config
	Documents *services.DocumentRepo
	Status    services.StatusStore
	Pipeline  *services.Pipeline
	Queue     *asynq.Client
}

func SetupUploadRoutes(api *gin.RouterGroup, deps UploadDeps) {
	api.POST("/upload", uploadHandler(deps))
	api.GET("/status/:document_id", statusHandler(deps))
}

// uploadHandler stages the file, records the queued document and either
// processes it right away or hands it to the worker. Small files are
// ingested in-process so the common case completes without a worker
// round-trip.
func uploadHandler(deps UploadDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.CurrentUserID(c)

		fileHeader, err := c.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "A file is required", nil)
			return
		}

		if fileHeader.Size > deps.Config.MaxFileSize {
			utils.RespondWithError(c, http.StatusRequestEntityTooLarge,
				"file_too_large",
				"File exceeds maximum allowed size",
				gin.H{"max_size": deps.Config.MaxFileSize})
			return
		}

		ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
		if !extensionAllowed(ext, deps.Config.AllowedExtensions) {
			utils.RespondWithBadRequest(c, "Unsupported file type",
				gin.H{"allowed": deps.Config.AllowedExtensions})
			return
		}

		if err := os.MkdirAll(deps.Config.FileStorageDir, 0o755); err != nil {
			utils.RespondWithInternalError(c, "Failed to prepare storage", nil)
			return
		}

		documentID := uuid.New().String()
		storedName := documentID + ext
		storedPath := filepath.Join(deps.Config.FileStorageDir, storedName)
		if err := c.SaveUploadedFile(fileHeader, storedPath); err != nil {
			utils.RespondWithInternalError(c, "Failed to store uploaded file", nil)
			return
		}

		doc := &models.Document{
			DocumentID:       documentID,
			UserID:           userID,
			Filename:         storedName,
			OriginalFilename: fileHeader.Filename,
			FilePath:         storedPath,
			FileSize:         fileHeader.Size,
			ContentType:      fileHeader.Header.Get("Content-Type"),
			Status:           models.DocStatusQueued,
			CreatedAt:        time.Now().UTC(),
		}
		if err := deps.Documents.Create(c.Request.Context(), doc); err != nil {
			os.Remove(storedPath)
			utils.RespondWithInternalError(c, "Failed to record document", nil)
			return
		}
		if err := deps.Status.Set(c.Request.Context(), documentID, services.NewState(services.StageQueued, "")); err != nil {
			logger.Warn("Failed to seed ingestion status", "document_id", documentID, "error", err)
		}

		job := services.IngestJob{
			UserID:     userID,
			DocumentID: documentID,
			Filename:   fileHeader.Filename,
			FilePath:   storedPath,
			RemoveFile: true,
		}

		if fileHeader.Size <= deps.Config.SyncProcessingLimit || deps.Queue == nil {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
				defer cancel()
				if err := deps.Pipeline.Ingest(ctx, job); err != nil {
					logger.Error("Inline ingestion failed", "document_id", documentID, "error", err)
				}
			}()

			c.JSON(http.StatusAccepted, models.UploadResponse{
				DocumentID: documentID,
				Filename:   fileHeader.Filename,
				Status:     models.DocStatusQueued,
				Message:    "Document accepted for processing",
			})
			return
		}

		task, err := queue.NewIngestTask(userID, documentID, fileHeader.Filename, storedPath)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to build ingestion task", nil)
			return
		}
		info, err := deps.Queue.Enqueue(task)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to queue document", nil)
			return
		}

		c.JSON(http.StatusAccepted, models.UploadResponse{
			DocumentID: documentID,
			Filename:   fileHeader.Filename,
			Status:     models.DocStatusQueued,
			TaskID:     info.ID,
			Message:    "Document queued for processing",
		})
	}
}

// statusHandler reads the fast tier first and falls back to the durable
// record when the live state has expired or was never written.
func statusHandler(deps UploadDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.CurrentUserID(c)
		documentID := c.Param("document_id")

		doc, err := deps.Documents.Get(c.Request.Context(), userID, documentID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load document", nil)
			return
		}
		if doc == nil {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}

		state, found, err := deps.Status.Get(c.Request.Context(), documentID)
		if err != nil {
			logger.Warn("Status tracker read failed", "document_id", documentID, "error", err)
		}
		if found {
			c.JSON(http.StatusOK, gin.H{
				"document_id":   documentID,
				"status":        doc.Status,
				"stage":         state.Stage,
				"progress":      state.Progress,
				"error_message": state.ErrorMessage,
				"updated_at":    state.UpdatedAt,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"document_id":   documentID,
			"status":        doc.Status,
			"error_message": doc.ErrorMessage,
			"chunk_count":   doc.ChunkCount,
			"completed_at":  doc.CompletedAt,
		})
	}
}

func extensionAllowed(ext string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(a), ext) {
			return true
		}
	}
	return false
}
