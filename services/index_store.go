package services

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"docqa-backend/internal/logger"
	"docqa-backend/models"
)

// IndexStore is the searchable chunk index. Every read and write is scoped
// by the owning user; a missing user ID is a programming error and is
// rejected rather than silently widened to all users.
type IndexStore interface {
	AddChunks(ctx context.Context, chunks []models.DocumentChunk) error
	DenseSearch(ctx context.Context, userID string, queryVector []float32, k int) ([]models.HybridSearchResult, error)
	KeywordSearch(ctx context.Context, userID, query string, k int) ([]models.HybridSearchResult, error)
	DeleteDocument(ctx context.Context, userID, documentID string) error
}

// MongoIndexStore keeps chunks in a dedicated collection backed by an Atlas
// vector index and an Atlas Search text index.
type MongoIndexStore struct {
	collection      string
	db              *mongo.Database
	vectorIndexName string
	searchIndexName string
	numCandidates   int
}

func NewMongoIndexStore(db *mongo.Database, vectorIndexName, searchIndexName string) *MongoIndexStore {
	return &MongoIndexStore{
		collection:      "document_chunks",
		db:              db,
		vectorIndexName: vectorIndexName,
		searchIndexName: searchIndexName,
		numCandidates:   100,
	}
}

func (s *MongoIndexStore) col() *mongo.Collection {
	return s.db.Collection(s.collection)
}

func (s *MongoIndexStore) AddChunks(ctx context.Context, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk.UserID == "" {
			return fmt.Errorf("chunk %s has no owner", chunk.ChunkID)
		}
		docs = append(docs, chunk)
	}
	if _, err := s.col().InsertMany(ctx, docs); err != nil {
		return &IndexWriteError{DocumentID: chunks[0].DocumentID, Err: err}
	}
	return nil
}

// DenseSearch runs an approximate nearest-neighbor query over the vector
// index. The owner filter is applied inside the $vectorSearch stage so the
// candidate set itself is scoped, not just the final results.
func (s *MongoIndexStore) DenseSearch(ctx context.Context, userID string, queryVector []float32, k int) ([]models.HybridSearchResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("dense search requires a user ID")
	}
	if k <= 0 {
		return nil, nil
	}

	numCandidates := s.numCandidates
	if k*10 > numCandidates {
		numCandidates = k * 10
	}

	pipeline := mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.D{
			{Key: "index", Value: s.vectorIndexName},
			{Key: "path", Value: "vector"},
			{Key: "queryVector", Value: queryVector},
			{Key: "numCandidates", Value: numCandidates},
			{Key: "limit", Value: k},
			{Key: "filter", Value: bson.D{{Key: "user_id", Value: userID}}},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "chunk_id", Value: 1},
			{Key: "document_id", Value: 1},
			{Key: "filename", Value: 1},
			{Key: "text", Value: 1},
			{Key: "page", Value: 1},
			{Key: "score", Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}},
		}}},
	}

	return s.runSearch(ctx, pipeline)
}

// KeywordSearch runs a BM25-scored text query over the Atlas Search index.
func (s *MongoIndexStore) KeywordSearch(ctx context.Context, userID, query string, k int) ([]models.HybridSearchResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("keyword search requires a user ID")
	}
	if k <= 0 || query == "" {
		return nil, nil
	}

	pipeline := mongo.Pipeline{
		{{Key: "$search", Value: bson.D{
			{Key: "index", Value: s.searchIndexName},
			{Key: "compound", Value: bson.D{
				{Key: "must", Value: bson.A{
					bson.D{{Key: "text", Value: bson.D{
						{Key: "query", Value: query},
						{Key: "path", Value: "text"},
					}}},
				}},
				{Key: "filter", Value: bson.A{
					bson.D{{Key: "equals", Value: bson.D{
						{Key: "path", Value: "user_id"},
						{Key: "value", Value: userID},
					}}},
				}},
			}},
		}}},
		{{Key: "$limit", Value: k}},
		{{Key: "$project", Value: bson.D{
			{Key: "chunk_id", Value: 1},
			{Key: "document_id", Value: 1},
			{Key: "filename", Value: 1},
			{Key: "text", Value: 1},
			{Key: "page", Value: 1},
			{Key: "score", Value: bson.D{{Key: "$meta", Value: "searchScore"}}},
		}}},
	}

	return s.runSearch(ctx, pipeline)
}

func (s *MongoIndexStore) runSearch(ctx context.Context, pipeline mongo.Pipeline) ([]models.HybridSearchResult, error) {
	cursor, err := s.col().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ChunkID    string  `bson:"chunk_id"`
		DocumentID string  `bson:"document_id"`
		Filename   string  `bson:"filename"`
		Text       string  `bson:"text"`
		Page       *int    `bson:"page"`
		Score      float64 `bson:"score"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	results := make([]models.HybridSearchResult, 0, len(rows))
	for _, row := range rows {
		filename := row.Filename
		if filename == "" {
			filename = models.UnknownDocumentName
		}
		results = append(results, models.HybridSearchResult{
			Snippet:    row.Text,
			Score:      row.Score,
			FileName:   filename,
			DocumentID: row.DocumentID,
			Page:       row.Page,
			ChunkID:    row.ChunkID,
		})
	}
	return results, nil
}

func (s *MongoIndexStore) DeleteDocument(ctx context.Context, userID, documentID string) error {
	if userID == "" {
		return fmt.Errorf("delete requires a user ID")
	}
	result, err := s.col().DeleteMany(ctx, bson.M{
		"user_id":     userID,
		"document_id": documentID,
	})
	if err != nil {
		return err
	}
	logger.Info("Deleted document chunks from index",
		"document_id", documentID,
		"chunks_removed", result.DeletedCount)
	return nil
}
