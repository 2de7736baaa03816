package models

// UnknownDocumentName is the display name used when a chunk carries no
// filename metadata.
const UnknownDocumentName = "Unknown Document"

// HybridSearchResult is a fused retrieval hit. Produced by the hybrid
// searcher, never persisted.
type HybridSearchResult struct {
	Snippet    string  `json:"snippet"`
	Score      float64 `json:"score"`
	FileName   string  `json:"file_name"`
	DocumentID string  `json:"document_id"`
	Page       *int    `json:"page,omitempty"`
	ChunkID    string  `json:"chunk_id,omitempty"`
}

// Citation is the downstream presentation payload for one retrieval hit,
// in retriever order.
type Citation struct {
	Snippet    string  `json:"snippet"`
	FileName   string  `json:"file_name"`
	DocumentID string  `json:"document_id"`
	Page       *int    `json:"page,omitempty"`
	Score      float64 `json:"score"`
}

// QueryRequest is the body of POST /api/v1/query.
type QueryRequest struct {
	Query          string `json:"query" binding:"required"`
	SessionID      string `json:"session_id,omitempty"`
	Limit          int    `json:"limit,omitempty"`
	IncludeHistory *bool  `json:"include_history,omitempty"`
}

// QueryResponse is the answer payload for POST /api/v1/query.
type QueryResponse struct {
	Answer          string     `json:"answer"`
	Citations       []Citation `json:"citations"`
	SessionID       string     `json:"session_id,omitempty"`
	ResponseTimeMS  int64      `json:"response_time_ms"`
	TokensUsed      int        `json:"tokens_used"`
	HistoryIncluded bool       `json:"history_included"`
}
