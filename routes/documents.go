package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docqa-backend/internal/logger"
	"docqa-backend/middleware"
	"docqa-backend/models"
	"docqa-backend/services"
	"docqa-backend/utils"
)

type DocumentDeps struct {
	Documents *services.DocumentRepo
	Index     services.IndexStore
}

func SetupDocumentRoutes(api *gin.RouterGroup, deps DocumentDeps) {
	api.GET("/documents", func(c *gin.Context) {
		userID := middleware.CurrentUserID(c)
		docs, err := deps.Documents.List(c.Request.Context(), userID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list documents", nil)
			return
		}
		if docs == nil {
			docs = []models.Document{}
		}
		c.JSON(http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
	})

	api.GET("/documents/:document_id", func(c *gin.Context) {
		userID := middleware.CurrentUserID(c)
		doc, err := deps.Documents.Get(c.Request.Context(), userID, c.Param("document_id"))
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load document", nil)
			return
		}
		if doc == nil {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}
		c.JSON(http.StatusOK, doc)
	})

	// Deleting a document removes both its indexed chunks and the durable
	// record. The chunks go first so a partial failure never leaves
	// searchable content with no owning record.
	api.DELETE("/documents/:document_id", func(c *gin.Context) {
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

		if err := deps.Index.DeleteDocument(c.Request.Context(), userID, documentID); err != nil {
			logger.Error("Failed to delete document chunks", "document_id", documentID, "error", err)
			utils.RespondWithInternalError(c, "Failed to delete document content", nil)
			return
		}
		if err := deps.Documents.Delete(c.Request.Context(), userID, documentID); err != nil {
			utils.RespondWithInternalError(c, "Failed to delete document record", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Document deleted", "document_id": documentID})
	})
}
