package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docqa-backend/models"
	"docqa-backend/utils"
)

// DocumentRepo is the durable tier for document records. Status writes here
// are independent of the fast status tracker; the two may transiently
// disagree and this record is the authoritative one.
type DocumentRepo struct {
	collection *mongo.Collection
}

func NewDocumentRepo(db *mongo.Database) *DocumentRepo {
	return &DocumentRepo{collection: db.Collection("documents")}
}

func (r *DocumentRepo) Create(ctx context.Context, doc *models.Document) error {
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create document record: %w", err)
	}
	return nil
}

func (r *DocumentRepo) Get(ctx context.Context, userID, documentID string) (*models.Document, error) {
	var doc models.Document
	err := r.collection.FindOne(ctx, bson.M{
		"user_id":     userID,
		"document_id": documentID,
	}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepo) List(ctx context.Context, userID string) ([]models.Document, error) {
	cursor, err := r.collection.Find(ctx,
		bson.M{"user_id": userID},
		options.Find().SetSort(bson.M{"created_at": -1}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// UpdateStatus writes the coarse durable status. The error message, if any,
// is sanitized and bounded before storage.
func (r *DocumentRepo) UpdateStatus(ctx context.Context, userID, documentID, status, errorMessage string) error {
	set := bson.M{"status": status}
	if errorMessage != "" {
		set["error_message"] = utils.TruncateErrorMessage(errorMessage)
	}
	if status == models.DocStatusCompleted || status == models.DocStatusFailed {
		set["completed_at"] = time.Now().UTC()
	}

	_, err := r.collection.UpdateOne(ctx,
		bson.M{"user_id": userID, "document_id": documentID},
		bson.M{"$set": set},
	)
	return err
}

// RecordCompletion stores the ingestion metrics alongside the completed
// status in a single write.
func (r *DocumentRepo) RecordCompletion(ctx context.Context, userID, documentID string, chunkCount, totalCharacters int, elapsed time.Duration) error {
	now := time.Now().UTC()
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"user_id": userID, "document_id": documentID},
		bson.M{"$set": bson.M{
			"status":             models.DocStatusCompleted,
			"chunk_count":        chunkCount,
			"total_characters":   totalCharacters,
			"processing_time_ms": elapsed.Milliseconds(),
			"completed_at":       now,
		}},
	)
	return err
}

func (r *DocumentRepo) Delete(ctx context.Context, userID, documentID string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{
		"user_id":     userID,
		"document_id": documentID,
	})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// FailStaleQueued marks documents stuck in the queued state beyond the
// deadline as failed. Used by the janitor; a stuck queued document usually
// means a worker died before picking up the task.
func (r *DocumentRepo) FailStaleQueued(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := r.collection.UpdateMany(ctx,
		bson.M{
			"status":     models.DocStatusQueued,
			"created_at": bson.M{"$lt": olderThan},
		},
		bson.M{"$set": bson.M{
			"status":        models.DocStatusFailed,
			"error_message": "Ingestion was never started; the document has been marked failed.",
			"completed_at":  time.Now().UTC(),
		}},
	)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}
