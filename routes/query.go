package routes

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"docqa-backend/internal/ai"
	"docqa-backend/internal/config"
	"docqa-backend/internal/logger"
	"docqa-backend/internal/telemetry"
	"docqa-backend/middleware"
	"docqa-backend/models"
	"docqa-backend/services"
	"docqa-backend/utils"
)

// NoDocumentsAnswer is returned without calling the generator when
// retrieval finds nothing for the user.
const NoDocumentsAnswer = "I don't have any relevant documents to answer your question. Please upload some documents first."

type QueryDeps struct {
	Config   *config.Config
	Searcher *services.HybridSearcher
	History  *services.HistoryStore
	Gemini   *ai.GeminiClient
	Metrics  *telemetry.Metrics
}

func SetupQueryRoutes(api *gin.RouterGroup, deps QueryDeps) {
	api.POST("/query", queryHandler(deps))
	api.GET("/history", historyHandler(deps))
	api.GET("/sessions", listSessionsHandler(deps))
	api.DELETE("/sessions/:session_id", deleteSessionHandler(deps))
}

func queryHandler(deps QueryDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		userID := middleware.CurrentUserID(c)

		var req models.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "A query is required", gin.H{"error": err.Error()})
			return
		}

		includeHistory := req.IncludeHistory == nil || *req.IncludeHistory

		results, err := deps.Searcher.Search(c.Request.Context(), userID, req.Query, req.Limit)
		if err != nil {
			utils.RespondWithInternalError(c, "Retrieval failed", nil)
			return
		}

		var (
			answer     string
			tokensUsed int
			citations  = []models.Citation{}
		)

		if len(results) == 0 {
			answer = NoDocumentsAnswer
		} else {
			var history []ai.Turn
			if includeHistory {
				history, err = deps.History.RecentTurns(c.Request.Context(), userID, req.SessionID, deps.Config.HistoryTurns)
				if err != nil {
					logger.Warn("Failed to load conversation history", "error", err)
					history = nil
				}
			}

			contextText := services.BuildContext(results)
			generated, err := deps.Gemini.Generate(c.Request.Context(), contextText, req.Query, history)
			if err != nil {
				genErr := &services.GenerationError{Err: err}
				logger.Error("Answer generation failed", "user_id", userID, "error", genErr)
				utils.RespondWithError(c, http.StatusBadGateway,
					"generation_failed",
					"The language model could not produce an answer. Please try again.",
					nil)
				return
			}

			answer = generated.Answer
			tokensUsed = generated.TotalTokens
			for _, r := range results {
				citations = append(citations, models.Citation{
					Snippet:    r.Snippet,
					FileName:   r.FileName,
					DocumentID: r.DocumentID,
					Page:       r.Page,
					Score:      r.Score,
				})
			}
		}

		elapsed := time.Since(start)
		if err := deps.History.RecordTurn(c.Request.Context(), userID, req.SessionID,
			req.Query, answer, services.BuildContext(results), elapsed, tokensUsed); err != nil {
			logger.Warn("Failed to record conversation turn", "error", err)
		}
		if deps.Metrics != nil {
			deps.Metrics.RecordQuery(tokensUsed)
		}

		c.JSON(http.StatusOK, models.QueryResponse{
			Answer:          answer,
			Citations:       citations,
			SessionID:       req.SessionID,
			ResponseTimeMS:  elapsed.Milliseconds(),
			TokensUsed:      tokensUsed,
			HistoryIncluded: includeHistory,
		})
	}
}

func historyHandler(deps QueryDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.CurrentUserID(c)
		skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

		turns, err := deps.History.ListTurns(c.Request.Context(), userID, skip, limit)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load query history", nil)
			return
		}
		if turns == nil {
			turns = []models.ConversationTurn{}
		}
		c.JSON(http.StatusOK, gin.H{"history": turns, "count": len(turns)})
	}
}

func listSessionsHandler(deps QueryDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.CurrentUserID(c)
		sessions, err := deps.History.ListSessions(c.Request.Context(), userID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list sessions", nil)
			return
		}
		if sessions == nil {
			sessions = []models.Session{}
		}
		c.JSON(http.StatusOK, gin.H{"sessions": sessions})
	}
}

func deleteSessionHandler(deps QueryDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.CurrentUserID(c)
		sessionID := c.Param("session_id")
		if err := deps.History.DeleteSession(c.Request.Context(), userID, sessionID); err != nil {
			utils.RespondWithNotFound(c, "Session not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Session deleted"})
	}
}
