package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"docqa-backend/utils"
)

// IngestionStage is one named step of the document processing state machine.
type IngestionStage string

const (
	StageQueued    IngestionStage = "queued"
	StageLoading   IngestionStage = "loading"
	StageChunking  IngestionStage = "chunking"
	StageEmbedding IngestionStage = "embedding"
	StageStoring   IngestionStage = "storing"
	StageComplete  IngestionStage = "complete"
	StageError     IngestionStage = "error"
)

// StageProgress returns the fixed progress checkpoint reported for a stage.
// Progress is monotonically non-decreasing across a successful run; ERROR
// resets to zero.
func StageProgress(stage IngestionStage) int {
	switch stage {
	case StageLoading:
		return 10
	case StageChunking:
		return 30
	case StageEmbedding:
		return 50
	case StageStoring:
		return 90
	case StageComplete:
		return 100
	default: // queued, error
		return 0
	}
}

// IngestionState is the last recorded tracker entry for a document.
type IngestionState struct {
	Stage        IngestionStage `json:"stage"`
	Progress     int            `json:"progress"`
	ErrorMessage string         `json:"error_message,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NewState builds a tracker entry for a stage with its fixed checkpoint.
// Error messages are sanitized and length-bounded before they are stored.
func NewState(stage IngestionStage, errorMessage string) IngestionState {
	return IngestionState{
		Stage:        stage,
		Progress:     StageProgress(stage),
		ErrorMessage: utils.TruncateErrorMessage(errorMessage),
		UpdatedAt:    time.Now().UTC(),
	}
}

// StatusStore records the live ingestion stage per document for polling.
// Set is an idempotent overwrite; Get returns the last recorded state or
// absence. This is the fast ephemeral tier: the durable tier is the
// document record, written independently, and callers needing strong
// consistency must read that instead.
type StatusStore interface {
	Set(ctx context.Context, documentID string, state IngestionState) error
	Get(ctx context.Context, documentID string) (*IngestionState, bool, error)
}

// MemoryStatusStore is a process-local StatusStore for tests and
// single-instance deployments. Not safe to share across independently
// scaled service instances.
type MemoryStatusStore struct {
	mu     sync.RWMutex
	states map[string]IngestionState
}

func NewMemoryStatusStore() *MemoryStatusStore {
	return &MemoryStatusStore{states: make(map[string]IngestionState)}
}

func (s *MemoryStatusStore) Set(_ context.Context, documentID string, state IngestionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[documentID] = state
	return nil
}

func (s *MemoryStatusStore) Get(_ context.Context, documentID string) (*IngestionState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[documentID]
	if !ok {
		return nil, false, nil
	}
	return &state, true, nil
}

// RedisStatusStore is the shared fast tier for multi-process deployments.
// Entries expire so abandoned documents do not accumulate.
type RedisStatusStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStatusStore(rdb *redis.Client) *RedisStatusStore {
	return &RedisStatusStore{rdb: rdb, ttl: 24 * time.Hour}
}

func (s *RedisStatusStore) Set(ctx context.Context, documentID string, state IngestionState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, statusKey(documentID), payload, s.ttl).Err()
}

func (s *RedisStatusStore) Get(ctx context.Context, documentID string) (*IngestionState, bool, error) {
	payload, err := s.rdb.Get(ctx, statusKey(documentID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var state IngestionState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, false, err
	}
	return &state, true, nil
}

func statusKey(documentID string) string {
	return "ingestion:status:" + documentID
}
