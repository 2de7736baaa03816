package models

import "time"

// ConversationTurn is one completed question/answer exchange. Turns are
// immutable once written and ordered by CreatedAt.
type ConversationTurn struct {
	UserID         string    `bson:"user_id" json:"user_id"`
	SessionID      string    `bson:"session_id,omitempty" json:"session_id,omitempty"`
	Question       string    `bson:"question" json:"question"`
	Answer         string    `bson:"answer" json:"answer"`
	ContextUsed    []byte    `bson:"context_used,omitempty" json:"-"`
	ResponseTimeMS int64     `bson:"response_time_ms" json:"response_time_ms"`
	TokensUsed     int       `bson:"tokens_used" json:"tokens_used"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}

// Session groups conversation turns under a client-chosen identifier. The
// name is set from the first question of the session.
type Session struct {
	SessionID    string    `bson:"session_id" json:"session_id"`
	UserID       string    `bson:"user_id" json:"user_id"`
	Name         string    `bson:"name,omitempty" json:"name,omitempty"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	LastActivity time.Time `bson:"last_activity" json:"last_activity"`
}
