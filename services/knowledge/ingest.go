// Copyright (C) 2025 StepSage AI (dev@stepsage.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package knowledge

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/weaviate/weaviate/entities/models"
)

// Chunking parameters for knowledge documents. Overlap is 10% of the
// chunk size so concept definitions straddling a boundary survive intact.
var (
	chunkSize    = 1000
	chunkOverlap = chunkSize / 10

	markdownSeparators = []string{
		"\n# ", "\n## ", "\n### ", "\n#### ", "\n##### ", "\n###### ",
		"\n\n", "\n", " ", "",
	}
	defaultSeparators = []string{"\n\n", "\n", " ", ""}
)

// IngestRequest describes one document to chunk and store.
type IngestRequest struct {
	// Content is the full document text.
	Content string `json:"content"`

	// Source names the originating document, e.g. "lists.md".
	Source string `json:"source"`

	// Concept is the primary concept tag every chunk of this document
	// carries. Optional; chunks without one are only reachable by
	// unfiltered search.
	Concept string `json:"concept"`
}

// Ingestor chunks documents and batches them into the knowledge store.
type Ingestor struct {
	client *Client
	logger *slog.Logger
}

// NewIngestor creates an Ingestor over the given store client.
func NewIngestor(client *Client, logger *slog.Logger) (*Ingestor, error) {
	if client == nil {
		return nil, fmt.Errorf("client must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		client: client,
		logger: logger.With(slog.String("component", "knowledge_ingestor")),
	}, nil
}

// Ingest splits the document, assigns content-derived deterministic IDs,
// and batch-imports the chunks. Re-ingesting the same document overwrites
// its chunks instead of duplicating them.
//
// Returns the number of chunks stored successfully.
func (ing *Ingestor) Ingest(ctx context.Context, req IngestRequest) (int, error) {
	if req.Content == "" {
		return 0, fmt.Errorf("content must not be empty")
	}
	if req.Source == "" {
		return 0, fmt.Errorf("source must not be empty")
	}

	splitter := splitterForSource(req.Source)
	chunks, err := splitter.SplitText(req.Content)
	if err != nil {
		return 0, fmt.Errorf("split content: %w", err)
	}
	if len(chunks) == 0 {
		ing.logger.Warn("no chunks produced", "source", req.Source)
		return 0, nil
	}
	ing.logger.Info("split document", "source", req.Source, "chunks", len(chunks))

	now := strfmt.DateTime(time.Now().UTC())
	objects := make([]*models.Object, len(chunks))
	for i, chunk := range chunks {
		// Deterministic ID from the chunk content keeps ingestion idempotent.
		hash := sha256.Sum256([]byte(req.Source + chunk))
		chunkUUID, _ := uuid.FromBytes(hash[:16])

		objects[i] = &models.Object{
			Class: ChunkClassName,
			ID:    strfmt.UUID(chunkUUID.String()),
			Properties: map[string]interface{}{
				"content":    chunk,
				"concept":    req.Concept,
				"source":     req.Source,
				"chunkIndex": i,
				"createdAt":  now,
			},
		}
	}

	var resp []models.ObjectsGetResponse
	err = ing.client.Execute(ctx, func() error {
		var doErr error
		resp, doErr = ing.client.Weaviate().Batch().
			ObjectsBatcher().
			WithObjects(objects...).
			Do(ctx)
		return doErr
	})
	if err != nil {
		return 0, fmt.Errorf("batch import: %w", err)
	}

	stored := 0
	for _, item := range resp {
		if item.Result != nil && item.Result.Status != nil && *item.Result.Status == "SUCCESS" {
			stored++
			continue
		}
		if item.Result != nil && item.Result.Errors != nil {
			for _, errItem := range item.Result.Errors.Error {
				ing.logger.Warn("batch item failed", "source", req.Source, "error", errItem.Message)
			}
		}
	}

	ing.logger.Info("ingested document",
		"source", req.Source,
		"concept", req.Concept,
		"chunks_stored", stored)
	return stored, nil
}

// splitterForSource picks a splitter by file extension. Knowledge
// documents are usually markdown; anything else gets the generic splitter.
func splitterForSource(source string) textsplitter.TextSplitter {
	separators := defaultSeparators
	if filepath.Ext(source) == ".md" {
		separators = markdownSeparators
	}
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
		textsplitter.WithSeparators(separators),
	)
}
