package services

import (
	"context"
	"strings"
	"testing"
)

func TestStageProgressCheckpoints(t *testing.T) {
	cases := map[IngestionStage]int{
		StageQueued:    0,
		StageLoading:   10,
		StageChunking:  30,
		StageEmbedding: 50,
		StageStoring:   90,
		StageComplete:  100,
		StageError:     0,
	}
	for stage, want := range cases {
		if got := StageProgress(stage); got != want {
			t.Fatalf("progress for %s: got %d, want %d", stage, got, want)
		}
	}
}

func TestStageProgressMonotone(t *testing.T) {
	order := []IngestionStage{StageQueued, StageLoading, StageChunking, StageEmbedding, StageStoring, StageComplete}
	last := -1
	for _, stage := range order {
		p := StageProgress(stage)
		if p < last {
			t.Fatalf("progress decreased at %s: %d -> %d", stage, last, p)
		}
		last = p
	}
}

func TestNewStateBoundsErrorMessage(t *testing.T) {
	long := strings.Repeat("x", 2000)
	state := NewState(StageError, long)
	if len(state.ErrorMessage) > 500 {
		t.Fatalf("error message not bounded: %d chars", len(state.ErrorMessage))
	}
	if state.Progress != 0 {
		t.Fatalf("error state progress must be 0, got %d", state.Progress)
	}
}

func TestNewStateStripsControlCharacters(t *testing.T) {
	state := NewState(StageError, "bad\x00byte\x1fhere")
	if strings.ContainsAny(state.ErrorMessage, "\x00\x1f") {
		t.Fatalf("control characters not stripped: %q", state.ErrorMessage)
	}
}

func TestMemoryStatusStore(t *testing.T) {
	store := NewMemoryStatusStore()
	ctx := context.Background()

	if _, found, err := store.Get(ctx, "missing"); err != nil || found {
		t.Fatalf("expected miss for unknown document, found=%v err=%v", found, err)
	}

	if err := store.Set(ctx, "doc-1", NewState(StageChunking, "")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	state, found, err := store.Get(ctx, "doc-1")
	if err != nil || !found {
		t.Fatalf("expected hit, found=%v err=%v", found, err)
	}
	if state.Stage != StageChunking || state.Progress != 30 {
		t.Fatalf("unexpected state: %+v", state)
	}

	// Overwrites replace the previous state.
	if err := store.Set(ctx, "doc-1", NewState(StageComplete, "")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	state, _, _ = store.Get(ctx, "doc-1")
	if state.Stage != StageComplete || state.Progress != 100 {
		t.Fatalf("overwrite failed: %+v", state)
	}
}
