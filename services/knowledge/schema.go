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

	"github.com/weaviate/weaviate/entities/models"
)

// ChunkClassName is the Weaviate class holding knowledge passages.
const ChunkClassName = "KnowledgeChunk"

// chunkClass returns the schema definition for the KnowledgeChunk class.
//
// The concept property carries the primary concept tag a chunk teaches;
// retrieval filters on it before falling back to unfiltered search.
func chunkClass() *models.Class {
	return &models.Class{
		Class:       ChunkClassName,
		Description: "A chunk of programming-concept documentation used to ground step explanations",
		Vectorizer:  "text2vec-transformers",
		Properties: []*models.Property{
			{
				Name:        "content",
				DataType:    []string{"text"},
				Description: "The chunk text",
			},
			{
				Name:        "concept",
				DataType:    []string{"text"},
				Description: "Primary concept tag the chunk teaches",
			},
			{
				Name:        "source",
				DataType:    []string{"text"},
				Description: "Originating document name",
			},
			{
				Name:        "chunkIndex",
				DataType:    []string{"int"},
				Description: "Zero-based position of the chunk within its document",
			},
			{
				Name:        "createdAt",
				DataType:    []string{"date"},
				Description: "Ingestion timestamp",
			},
		},
	}
}

// EnsureSchema creates the KnowledgeChunk class when it does not exist.
// Safe to call on every startup.
func EnsureSchema(ctx context.Context, client *Client) error {
	exists, err := client.Weaviate().Schema().
		ClassExistenceChecker().
		WithClassName(ChunkClassName).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("check schema: %w", err)
	}
	if exists {
		client.logger.Debug("schema already present", "class", ChunkClassName)
		return nil
	}

	err = client.Execute(ctx, func() error {
		return client.Weaviate().Schema().
			ClassCreator().
			WithClass(chunkClass()).
			Do(ctx)
	})
	if err != nil {
		return fmt.Errorf("create class %s: %w", ChunkClassName, err)
	}

	client.logger.Info("created knowledge schema", "class", ChunkClassName)
	return nil
}
