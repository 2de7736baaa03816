package services

import (
	"context"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"docqa-backend/internal/logger"
	"docqa-backend/models"
)

// QueryEmbedder produces the dense vector for a single query string.
// Satisfied by ai.Embedder.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// HybridSearcher fuses dense vector retrieval with BM25 keyword retrieval
// using weighted reciprocal-rank fusion. Either source may fail without
// failing the query; a failed source contributes an empty result list.
type HybridSearcher struct {
	index       IndexStore
	embedder    QueryEmbedder
	denseK      int
	bm25K       int
	topK        int
	denseWeight float64
	bm25Weight  float64
}

func NewHybridSearcher(index IndexStore, embedder QueryEmbedder, denseK, bm25K, topK int, denseWeight, bm25Weight float64) *HybridSearcher {
	return &HybridSearcher{
		index:       index,
		embedder:    embedder,
		denseK:      denseK,
		bm25K:       bm25K,
		topK:        topK,
		denseWeight: denseWeight,
		bm25Weight:  bm25Weight,
	}
}

// Search returns at most limit fused results for the user's query, best
// first. A non-positive limit falls back to the configured default. An
// empty return with nil error means neither source produced anything
// usable.
func (h *HybridSearcher) Search(ctx context.Context, userID, query string, limit int) ([]models.HybridSearchResult, error) {
	ctx, span := otel.Tracer("docqa-backend").Start(ctx, "hybrid.search")
	defer span.End()

	if limit <= 0 {
		limit = h.topK
	}

	dense := h.denseResults(ctx, userID, query)
	keyword := h.keywordResults(ctx, userID, query)

	fused := FuseResults(dense, keyword, h.denseWeight, h.bm25Weight)
	if len(fused) > limit {
		fused = fused[:limit]
	}

	span.SetAttributes(
		attribute.Int("search.dense_hits", len(dense)),
		attribute.Int("search.keyword_hits", len(keyword)),
		attribute.Int("search.fused_hits", len(fused)),
	)
	return fused, nil
}

func (h *HybridSearcher) denseResults(ctx context.Context, userID, query string) []models.HybridSearchResult {
	vector, err := h.embedder.Embed(ctx, query)
	if err != nil {
		logger.Warn("Dense retrieval degraded: query embedding failed", "error", err)
		return nil
	}
	results, err := h.index.DenseSearch(ctx, userID, vector, h.denseK)
	if err != nil {
		retErr := &RetrievalError{Source: "dense", Err: err}
		logger.Warn("Dense retrieval degraded", "error", retErr)
		return nil
	}
	return results
}

func (h *HybridSearcher) keywordResults(ctx context.Context, userID, query string) []models.HybridSearchResult {
	results, err := h.index.KeywordSearch(ctx, userID, query, h.bm25K)
	if err != nil {
		retErr := &RetrievalError{Source: "bm25", Err: err}
		logger.Warn("Keyword retrieval degraded", "error", retErr)
		return nil
	}
	return results
}

// BuildContext assembles the grounding context passed to the generator:
// the fused snippets in retriever order, newline separated.
func BuildContext(results []models.HybridSearchResult) string {
	snippets := make([]string, 0, len(results))
	for _, r := range results {
		snippets = append(snippets, r.Snippet)
	}
	return strings.Join(snippets, "\n")
}

// FuseResults merges two ranked lists by weighted reciprocal rank. Each
// entry contributes weight/(rank+1) with zero-based rank within its own
// list. Entries with identical passage text are the same candidate and
// their contributions sum; metadata comes from whichever list introduced
// the candidate first, with the dense list consumed before the keyword
// list. Equal fused scores keep first-encounter order.
func FuseResults(dense, keyword []models.HybridSearchResult, denseWeight, bm25Weight float64) []models.HybridSearchResult {
	type candidate struct {
		result models.HybridSearchResult
		score  float64
		order  int
	}

	byText := make(map[string]*candidate)
	ordered := make([]*candidate, 0, len(dense)+len(keyword))

	accumulate := func(results []models.HybridSearchResult, weight float64) {
		for rank, r := range results {
			contribution := weight / float64(rank+1)
			if existing, ok := byText[r.Snippet]; ok {
				existing.score += contribution
				continue
			}
			c := &candidate{result: r, score: contribution, order: len(ordered)}
			byText[r.Snippet] = c
			ordered = append(ordered, c)
		}
	}

	accumulate(dense, denseWeight)
	accumulate(keyword, bm25Weight)

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].score > ordered[j].score
	})

	fused := make([]models.HybridSearchResult, 0, len(ordered))
	for _, c := range ordered {
		r := c.result
		r.Score = c.score
		if r.FileName == "" {
			r.FileName = models.UnknownDocumentName
		}
		fused = append(fused, r)
	}
	return fused
}
