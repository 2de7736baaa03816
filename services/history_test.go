package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"docqa-backend/models"
)

// fixtureTurnSource returns a canned newest-first slice. It deliberately
// ignores the limit argument so the assembly cap is exercised on its own.
type fixtureTurnSource struct {
	rows []models.ConversationTurn
	err  error

	calls       int
	seenUser    string
	seenSession string
	seenLimit   int
}

func (f *fixtureTurnSource) NewestTurns(ctx context.Context, userID, sessionID string, limit int) ([]models.ConversationTurn, error) {
	f.calls++
	f.seenUser = userID
	f.seenSession = sessionID
	f.seenLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func newestFirstTurns(n int) []models.ConversationTurn {
	// Index 0 is the newest turn, matching the store's sort order.
	rows := make([]models.ConversationTurn, n)
	for i := range rows {
		rows[i] = models.ConversationTurn{
			Question: fmt.Sprintf("question-%d", n-i),
			Answer:   fmt.Sprintf("answer-%d", n-i),
		}
	}
	return rows
}

func TestAssembleChatHistoryChronologicalOrder(t *testing.T) {
	src := &fixtureTurnSource{rows: newestFirstTurns(3)}

	turns, err := AssembleChatHistory(context.Background(), src, "user-1", "", 10)
	if err != nil {
		t.Fatalf("AssembleChatHistory: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	for i, turn := range turns {
		want := fmt.Sprintf("question-%d", i+1)
		if turn.Question != want {
			t.Fatalf("position %d: got %q, want %q", i, turn.Question, want)
		}
	}
}

func TestAssembleChatHistoryNeverExceedsMaxTurns(t *testing.T) {
	src := &fixtureTurnSource{rows: newestFirstTurns(10)}

	turns, err := AssembleChatHistory(context.Background(), src, "user-1", "", 4)
	if err != nil {
		t.Fatalf("AssembleChatHistory: %v", err)
	}
	if len(turns) != 4 {
		t.Fatalf("expected the 4-turn cap, got %d turns", len(turns))
	}

	// The cap keeps the newest turns, still in chronological order.
	want := []string{"question-7", "question-8", "question-9", "question-10"}
	for i := range want {
		if turns[i].Question != want[i] {
			t.Fatalf("position %d: got %q, want %q", i, turns[i].Question, want[i])
		}
	}
	if src.seenLimit != 4 {
		t.Fatalf("source should be asked for at most maxTurns rows, got %d", src.seenLimit)
	}
}

func TestAssembleChatHistoryZeroMaxSkipsSource(t *testing.T) {
	src := &fixtureTurnSource{rows: newestFirstTurns(5)}

	turns, err := AssembleChatHistory(context.Background(), src, "user-1", "", 0)
	if err != nil {
		t.Fatalf("AssembleChatHistory: %v", err)
	}
	if turns != nil {
		t.Fatalf("expected no history, got %d turns", len(turns))
	}
	if src.calls != 0 {
		t.Fatalf("source should not be queried when history is disabled")
	}
}

func TestAssembleChatHistoryForwardsScope(t *testing.T) {
	src := &fixtureTurnSource{}

	if _, err := AssembleChatHistory(context.Background(), src, "user-9", "session-3", 5); err != nil {
		t.Fatalf("AssembleChatHistory: %v", err)
	}
	if src.seenUser != "user-9" || src.seenSession != "session-3" {
		t.Fatalf("scope not forwarded: user=%q session=%q", src.seenUser, src.seenSession)
	}
}

func TestAssembleChatHistoryPropagatesSourceError(t *testing.T) {
	src := &fixtureTurnSource{err: errors.New("cursor timeout")}

	if _, err := AssembleChatHistory(context.Background(), src, "user-1", "", 5); err == nil {
		t.Fatalf("expected source error to propagate")
	}
}
