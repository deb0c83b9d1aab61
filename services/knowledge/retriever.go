// Copyright (C) 2025 StepSage AI (dev@stepsage.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// =============================================================================
// Retrieval Types
// =============================================================================

// Chunk is one retrieved knowledge passage with its relevance scores.
type Chunk struct {
	Content    string  `json:"content"`
	Concept    string  `json:"concept"`
	Source     string  `json:"source"`
	ChunkIndex int     `json:"chunk_index"`
	Certainty  float64 `json:"certainty"`
	Distance   float64 `json:"distance"`
}

// RetrieverConfig configures the chunk retriever.
type RetrieverConfig struct {
	// MaxResults is the default limit for retrieval queries.
	// Default: 5
	MaxResults int

	// Logger for retrieval operations.
	// Default: slog.Default()
	Logger *slog.Logger
}

// =============================================================================
// Retriever
// =============================================================================

// Retriever performs semantic retrieval over KnowledgeChunk objects.
//
// Thread Safety: Safe for concurrent use.
type Retriever struct {
	client *Client
	config RetrieverConfig
	logger *slog.Logger
}

// NewRetriever creates a Retriever over the given store client.
func NewRetriever(client *Client, config RetrieverConfig) (*Retriever, error) {
	if client == nil {
		return nil, fmt.Errorf("client must not be nil")
	}
	if config.MaxResults <= 0 {
		config.MaxResults = 5
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Retriever{
		client: client,
		config: config,
		logger: config.Logger.With(slog.String("component", "knowledge_retriever")),
	}, nil
}

// Retrieve runs a nearText query for the given text, optionally filtered
// to a single concept tag, and returns chunks sorted by certainty.
//
// A non-nil error is always a *RetrievalError so callers can degrade.
func (r *Retriever) Retrieve(ctx context.Context, query, concept string, limit int) ([]Chunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &RetrievalError{Op: "query", Err: fmt.Errorf("query cannot be empty")}
	}
	if limit <= 0 {
		limit = r.config.MaxResults
	}

	gql := r.client.Weaviate().GraphQL()
	nearText := gql.NearTextArgBuilder().WithConcepts([]string{query})

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "concept"},
		{Name: "source"},
		{Name: "chunkIndex"},
		{Name: "_additional { certainty distance }"},
	}

	// Fetch more than requested so the certainty sort has headroom.
	fetchLimit := limit * 3
	if fetchLimit < 10 {
		fetchLimit = 10
	}

	builder := gql.Get().
		WithClassName(ChunkClassName).
		WithFields(fields...).
		WithNearText(nearText).
		WithLimit(fetchLimit)

	if concept != "" {
		builder = builder.WithWhere(filters.Where().
			WithPath([]string{"concept"}).
			WithOperator(filters.Equal).
			WithValueText(concept))
	}

	var result *models.GraphQLResponse
	err := r.client.Execute(ctx, func() error {
		var doErr error
		result, doErr = builder.Do(ctx)
		return doErr
	})
	if err != nil {
		return nil, &RetrievalError{Op: "search", Err: err}
	}
	if len(result.Errors) > 0 {
		return nil, &RetrievalError{Op: "search", Err: fmt.Errorf("%s", result.Errors[0].Message)}
	}

	chunks := parseChunks(result)
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Certainty > chunks[j].Certainty })
	if len(chunks) > limit {
		chunks = chunks[:limit]
	}

	r.logger.Debug("retrieved knowledge chunks",
		"query", query,
		"concept", concept,
		"count", len(chunks))
	return chunks, nil
}

// RetrieveForTopic runs a concept-aware retrieval for a free-text topic
// query: when the query names a known concept the filtered search runs
// first, falling back to unfiltered when the filter yields nothing.
func (r *Retriever) RetrieveForTopic(ctx context.Context, query string, limit int) ([]Chunk, error) {
	concept := inferConcept(query)
	chunks, err := r.Retrieve(ctx, query, concept, limit)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 && concept != "" {
		r.logger.Debug("concept-filtered topic retrieval empty, retrying unfiltered",
			"concept", concept)
		chunks, err = r.Retrieve(ctx, query, "", limit)
		if err != nil {
			return nil, err
		}
	}
	return chunks, nil
}

// inferConcept maps a free-text query onto the concept vocabulary by
// spotting a concept name (underscores read as spaces) in the query.
func inferConcept(query string) string {
	lower := strings.ToLower(query)
	for _, c := range priorityConcepts {
		if strings.Contains(lower, strings.ReplaceAll(c, "_", " ")) || strings.Contains(lower, c) {
			return c
		}
	}
	return ""
}

// parseChunks extracts Chunk values from a GraphQL response, skipping
// malformed objects.
func parseChunks(result *models.GraphQLResponse) []Chunk {
	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return []Chunk{}
	}
	objects, ok := data[ChunkClassName].([]interface{})
	if !ok {
		return []Chunk{}
	}

	chunks := make([]Chunk, 0, len(objects))
	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}
		chunk := Chunk{
			Content:    getString(m, "content"),
			Concept:    getString(m, "concept"),
			Source:     getString(m, "source"),
			ChunkIndex: getInt(m, "chunkIndex"),
		}
		if additional, ok := m["_additional"].(map[string]interface{}); ok {
			chunk.Certainty = getFloat64(additional, "certainty")
			chunk.Distance = getFloat64(additional, "distance")
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func getFloat64(m map[string]interface{}, key string) float64 {
	if v, ok := m[key].(float64); ok {
		return v
	}
	return 0
}

func getInt(m map[string]interface{}, key string) int {
	if v, ok := m[key].(float64); ok {
		return int(v)
	}
	return 0
}

// =============================================================================
// Step Retriever
// =============================================================================

// priorityConcepts orders concept tags by explanatory value. When a step
// carries several tags, the highest-priority one drives the filtered query.
var priorityConcepts = []string{
	"iteration",
	"conditional",
	"function_call",
	"list_comprehension",
	"exception_handling",
	"mapping",
	"ordered_collection",
	"arithmetic",
	"assignment",
}

// StepRetriever adapts the chunk retriever to per-step explanation
// retrieval: it builds a query from the step's concepts and source line,
// tries a concept-filtered search first, and falls back to unfiltered
// search when the filter yields nothing.
type StepRetriever struct {
	retriever *Retriever
	logger    *slog.Logger
}

// NewStepRetriever creates a StepRetriever over an existing Retriever.
func NewStepRetriever(retriever *Retriever, logger *slog.Logger) (*StepRetriever, error) {
	if retriever == nil {
		return nil, fmt.Errorf("retriever must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StepRetriever{retriever: retriever, logger: logger}, nil
}

// KnowledgeForStep returns the text of up to limit chunks relevant to the
// step's concepts and source line.
func (s *StepRetriever) KnowledgeForStep(ctx context.Context, concepts []string, sourceLine string, limit int) ([]string, error) {
	if len(concepts) == 0 {
		return nil, nil
	}

	primary := primaryConcept(concepts)
	query := buildStepQuery(concepts, sourceLine)

	chunks, err := s.retriever.Retrieve(ctx, query, primary, limit)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 && primary != "" {
		s.logger.Debug("filtered retrieval empty, retrying unfiltered", "concept", primary)
		chunks, err = s.retriever.Retrieve(ctx, query, "", limit)
		if err != nil {
			return nil, err
		}
	}

	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Content)
	}
	return texts, nil
}

// primaryConcept picks the highest-priority concept present, or the first
// one when none is prioritized.
func primaryConcept(concepts []string) string {
	present := make(map[string]bool, len(concepts))
	for _, c := range concepts {
		present[c] = true
	}
	for _, p := range priorityConcepts {
		if present[p] {
			return p
		}
	}
	return concepts[0]
}

// buildStepQuery combines the concept tags and the literal source line
// into one semantic query string.
func buildStepQuery(concepts []string, sourceLine string) string {
	parts := make([]string, 0, len(concepts)+1)
	for _, c := range concepts {
		parts = append(parts, strings.ReplaceAll(c, "_", " "))
	}
	if sourceLine != "" {
		parts = append(parts, sourceLine)
	}
	return strings.Join(parts, " ")
}
