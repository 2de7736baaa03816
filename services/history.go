package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docqa-backend/internal/ai"
	"docqa-backend/internal/logger"
	"docqa-backend/models"
	"docqa-backend/utils"
)

// TurnSource yields a user's most recent turns, newest first. Satisfied by
// *HistoryStore.
type TurnSource interface {
	NewestTurns(ctx context.Context, userID, sessionID string, limit int) ([]models.ConversationTurn, error)
}

// HistoryStore persists conversation turns and sessions. Turns are an
// append-only log; sessions track the grouping and last activity.
type HistoryStore struct {
	turns    *mongo.Collection
	sessions *mongo.Collection
}

func NewHistoryStore(db *mongo.Database) *HistoryStore {
	return &HistoryStore{
		turns:    db.Collection("conversation_turns"),
		sessions: db.Collection("sessions"),
	}
}

// RecordTurn appends one completed exchange. The retrieval context that
// produced the answer is compressed before storage; a compression failure
// drops the context but never the turn.
func (h *HistoryStore) RecordTurn(ctx context.Context, userID, sessionID, question, answer, contextText string, responseTime time.Duration, tokensUsed int) error {
	compressed, err := utils.CompressText(contextText)
	if err != nil {
		logger.Warn("Failed to compress turn context", "session_id", sessionID, "error", err)
		compressed = nil
	}

	turn := models.ConversationTurn{
		UserID:         userID,
		SessionID:      sessionID,
		Question:       question,
		Answer:         answer,
		ContextUsed:    compressed,
		ResponseTimeMS: responseTime.Milliseconds(),
		TokensUsed:     tokensUsed,
		CreatedAt:      time.Now().UTC(),
	}
	if _, err := h.turns.InsertOne(ctx, turn); err != nil {
		return err
	}

	if sessionID != "" {
		h.touchSession(ctx, userID, sessionID, question)
	}
	return nil
}

// RecentTurns returns the user's last limit turns, oldest first, ready to
// seed the generator's chat history. Session-scoped when sessionID is set,
// otherwise across all of the user's turns.
func (h *HistoryStore) RecentTurns(ctx context.Context, userID, sessionID string, limit int) ([]ai.Turn, error) {
	return AssembleChatHistory(ctx, h, userID, sessionID, limit)
}

// NewestTurns fetches up to limit of the user's turns, newest first.
func (h *HistoryStore) NewestTurns(ctx context.Context, userID, sessionID string, limit int) ([]models.ConversationTurn, error) {
	filter := bson.M{"user_id": userID}
	if sessionID != "" {
		filter["session_id"] = sessionID
	}

	cursor, err := h.turns.Find(ctx, filter,
		options.Find().
			SetSort(bson.M{"created_at": -1}).
			SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []models.ConversationTurn
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// AssembleChatHistory turns the newest rows from a source into the
// chronological sequence fed to the generator. The result never exceeds
// maxTurns even when the source over-returns.
func AssembleChatHistory(ctx context.Context, src TurnSource, userID, sessionID string, maxTurns int) ([]ai.Turn, error) {
	if maxTurns <= 0 {
		return nil, nil
	}

	rows, err := src.NewestTurns(ctx, userID, sessionID, maxTurns)
	if err != nil {
		return nil, err
	}
	if len(rows) > maxTurns {
		rows = rows[:maxTurns]
	}

	// Newest-first from the source; reverse into chronological order.
	turns := make([]ai.Turn, len(rows))
	for i, row := range rows {
		turns[len(rows)-1-i] = ai.Turn{Question: row.Question, Answer: row.Answer}
	}
	return turns, nil
}

// ListTurns returns a page of the user's turns, newest first.
func (h *HistoryStore) ListTurns(ctx context.Context, userID string, skip, limit int) ([]models.ConversationTurn, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if skip < 0 {
		skip = 0
	}

	cursor, err := h.turns.Find(ctx,
		bson.M{"user_id": userID},
		options.Find().
			SetSort(bson.M{"created_at": -1}).
			SetSkip(int64(skip)).
			SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var turns []models.ConversationTurn
	if err := cursor.All(ctx, &turns); err != nil {
		return nil, err
	}
	return turns, nil
}

// touchSession upserts the session record and bumps last activity. The
// session name is set once, from the first question.
func (h *HistoryStore) touchSession(ctx context.Context, userID, sessionID, firstQuestion string) {
	name := firstQuestion
	if len(name) > 80 {
		name = name[:80]
	}
	now := time.Now().UTC()

	_, err := h.sessions.UpdateOne(ctx,
		bson.M{"session_id": sessionID, "user_id": userID},
		bson.M{
			"$set":         bson.M{"last_activity": now},
			"$setOnInsert": bson.M{"name": name, "created_at": now},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		logger.Warn("Failed to update session", "session_id", sessionID, "error", err)
	}
}

func (h *HistoryStore) ListSessions(ctx context.Context, userID string) ([]models.Session, error) {
	cursor, err := h.sessions.Find(ctx,
		bson.M{"user_id": userID},
		options.Find().SetSort(bson.M{"last_activity": -1}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var sessions []models.Session
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// DeleteSession removes the session record and every turn in it.
func (h *HistoryStore) DeleteSession(ctx context.Context, userID, sessionID string) error {
	result, err := h.sessions.DeleteOne(ctx, bson.M{
		"session_id": sessionID,
		"user_id":    userID,
	})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}

	if _, err := h.turns.DeleteMany(ctx, bson.M{
		"session_id": sessionID,
		"user_id":    userID,
	}); err != nil {
		return err
	}
	return nil
}

// GetTurnContext decompresses the stored retrieval context of a turn.
func (h *HistoryStore) GetTurnContext(turn *models.ConversationTurn) (string, error) {
	return utils.DecompressText(turn.ContextUsed)
}
