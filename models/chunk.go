package models

// DocumentChunk is a denormalized chunk stored in the document_chunks
// collection for Atlas Search/VectorSearch. Metadata is modelled with named
// fields rather than an open map so the owner scoping is statically visible:
// every chunk carries the UserID of its parent document, and the index store
// must never return a chunk to a query scoped to a different user.
type DocumentChunk struct {
	ChunkID    string    `bson:"chunk_id" json:"chunk_id"`
	UserID     string    `bson:"user_id" json:"user_id"`
	DocumentID string    `bson:"document_id" json:"document_id"`
	Filename   string    `bson:"filename" json:"filename"`
	Order      int       `bson:"order" json:"order"`
	Text       string    `bson:"text" json:"text"`
	Page       *int      `bson:"page,omitempty" json:"page,omitempty"`
	Vector     []float32 `bson:"vector,omitempty" json:"-"`
}
