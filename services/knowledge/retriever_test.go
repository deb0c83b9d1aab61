// Copyright (C) 2025 StepSage AI (dev@stepsage.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"
)

func TestParseChunks(t *testing.T) {
	resp := &models.GraphQLResponse{
		Data: map[string]models.JSONObject{
			"Get": map[string]interface{}{
				ChunkClassName: []interface{}{
					map[string]interface{}{
						"content":    "Lists are ordered collections.",
						"concept":    "ordered_collection",
						"source":     "lists.md",
						"chunkIndex": 0.0,
						"_additional": map[string]interface{}{
							"certainty": 0.91,
							"distance":  0.09,
						},
					},
					map[string]interface{}{
						"content": "Dictionaries map keys to values.",
						"concept": "mapping",
						"source":  "dicts.md",
					},
					"malformed entry",
				},
			},
		},
	}

	chunks := parseChunks(resp)

	require.Len(t, chunks, 2, "malformed objects are skipped")
	assert.Equal(t, "Lists are ordered collections.", chunks[0].Content)
	assert.Equal(t, "ordered_collection", chunks[0].Concept)
	assert.Equal(t, 0.91, chunks[0].Certainty)
	assert.Equal(t, "mapping", chunks[1].Concept)
	assert.Zero(t, chunks[1].Certainty)
}

func TestParseChunks_EmptyResponse(t *testing.T) {
	assert.Empty(t, parseChunks(&models.GraphQLResponse{Data: map[string]models.JSONObject{}}))
	assert.Empty(t, parseChunks(&models.GraphQLResponse{
		Data: map[string]models.JSONObject{"Get": map[string]interface{}{}},
	}))
}

func TestNewRetriever_NilClient(t *testing.T) {
	_, err := NewRetriever(nil, RetrieverConfig{})
	assert.Error(t, err)
}

func TestPrimaryConcept(t *testing.T) {
	tests := []struct {
		name     string
		concepts []string
		want     string
	}{
		{
			name:     "iteration beats assignment",
			concepts: []string{"assignment", "iteration"},
			want:     "iteration",
		},
		{
			name:     "conditional beats arithmetic",
			concepts: []string{"arithmetic", "comparison", "conditional"},
			want:     "conditional",
		},
		{
			name:     "unprioritized falls back to first",
			concepts: []string{"scope_exit", "growth"},
			want:     "scope_exit",
		},
		{
			name:     "single concept",
			concepts: []string{"mapping"},
			want:     "mapping",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, primaryConcept(tt.concepts))
		})
	}
}

func TestInferConcept(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"direct concept name", "explain iteration over lists", "iteration"},
		{"underscored concept as words", "what is a function call", "function_call"},
		{"priority order wins", "conditional inside iteration", "iteration"},
		{"unknown topic", "explain recursion", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inferConcept(tt.query))
		})
	}
}

func TestBuildStepQuery(t *testing.T) {
	got := buildStepQuery([]string{"list_comprehension", "iteration"}, "xs = [n for n in nums]")
	assert.Equal(t, "list comprehension iteration xs = [n for n in nums]", got)

	got = buildStepQuery([]string{"assignment"}, "")
	assert.Equal(t, "assignment", got)
}

func TestNewStepRetriever_NilRetriever(t *testing.T) {
	_, err := NewStepRetriever(nil, nil)
	assert.Error(t, err)
}
