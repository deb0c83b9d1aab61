// Copyright (C) 2025 StepSage AI (dev@stepsage.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/stepsage-ai/stepsage/services/explainer"
	"github.com/stepsage-ai/stepsage/services/knowledge"
	"github.com/stepsage-ai/stepsage/services/orchestrator/datatypes"
	"github.com/stepsage-ai/stepsage/services/orchestrator/observability"
)

// Retrieve handles POST /v1/knowledge/retrieve, returning plain chunk
// texts for a semantic query.
func Retrieve(retriever *knowledge.Retriever) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "handlers.Retrieve")
		defer span.End()

		var req datatypes.RetrieveRequest
		if err := c.BindJSON(&req); err != nil {
			observability.RecordRequest("retrieve", "error")
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		span.SetAttributes(attribute.String("concept", req.Concept))

		chunks, err := retriever.Retrieve(ctx, req.Query, req.Concept, req.Limit)
		if err != nil {
			span.RecordError(err)
			observability.RecordRequest("retrieve", "error")
			slog.Error("knowledge retrieval failed", "error", err)
			c.JSON(errStatus(err), gin.H{"error": "retrieval failed"})
			return
		}

		texts := make([]string, 0, len(chunks))
		for _, chunk := range chunks {
			texts = append(texts, chunk.Content)
		}

		observability.RecordRequest("retrieve", "success")
		c.JSON(http.StatusOK, datatypes.RetrieveResponse{Chunks: texts})
	}
}

// RetrieveDetailed handles POST /v1/knowledge/retrieve/detailed,
// returning chunks with scores and provenance.
func RetrieveDetailed(retriever *knowledge.Retriever) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "handlers.RetrieveDetailed")
		defer span.End()

		var req datatypes.RetrieveRequest
		if err := c.BindJSON(&req); err != nil {
			observability.RecordRequest("retrieve", "error")
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		chunks, err := retriever.Retrieve(ctx, req.Query, req.Concept, req.Limit)
		if err != nil {
			span.RecordError(err)
			observability.RecordRequest("retrieve", "error")
			slog.Error("knowledge retrieval failed", "error", err)
			c.JSON(errStatus(err), gin.H{"error": "retrieval failed"})
			return
		}

		observability.RecordRequest("retrieve", "success")
		c.JSON(http.StatusOK, datatypes.RetrieveDetailedResponse{Chunks: chunks})
	}
}

// RetrieveClean handles POST /v1/knowledge/retrieve/clean, returning
// sanitized per-chunk summaries instead of raw passage text.
func RetrieveClean(retriever *knowledge.Retriever) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "handlers.RetrieveClean")
		defer span.End()

		var req datatypes.RetrieveRequest
		if err := c.BindJSON(&req); err != nil {
			observability.RecordRequest("retrieve", "error")
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		chunks, err := retriever.Retrieve(ctx, req.Query, req.Concept, req.Limit)
		if err != nil {
			span.RecordError(err)
			observability.RecordRequest("retrieve", "error")
			slog.Error("knowledge retrieval failed", "error", err)
			c.JSON(errStatus(err), gin.H{"error": "retrieval failed"})
			return
		}

		summaries := make([]string, 0, len(chunks))
		for _, chunk := range chunks {
			if summary := explainer.SummarizeChunk(chunk.Content); summary != "" {
				summaries = append(summaries, summary)
			}
		}

		observability.RecordRequest("retrieve", "success")
		c.JSON(http.StatusOK, datatypes.RetrieveCleanResponse{
			Summaries: summaries,
			Query:     req.Query,
			Count:     len(summaries),
		})
	}
}

// ExplainTopic handles POST /v1/explain/topic: a concept-aware retrieval
// folded into one structured explanation with key points.
func ExplainTopic(retriever *knowledge.Retriever) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "handlers.ExplainTopic")
		defer span.End()

		var req datatypes.RetrieveRequest
		if err := c.BindJSON(&req); err != nil {
			observability.RecordRequest("explain_topic", "error")
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		// A coherent explanation needs several passages to fold together.
		limit := req.Limit
		if limit < topicMinChunks {
			limit = topicMinChunks
		}

		chunks, err := retriever.RetrieveForTopic(ctx, req.Query, limit)
		if err != nil {
			span.RecordError(err)
			observability.RecordRequest("explain_topic", "error")
			slog.Error("topic retrieval failed", "error", err)
			c.JSON(errStatus(err), gin.H{"error": "retrieval failed"})
			return
		}
		if len(chunks) == 0 {
			observability.RecordRequest("explain_topic", "error")
			c.JSON(http.StatusNotFound, gin.H{"error": "no knowledge found for this topic"})
			return
		}

		texts := make([]string, 0, len(chunks))
		for _, chunk := range chunks {
			texts = append(texts, chunk.Content)
		}
		summary := explainer.SummarizeTopic(req.Query, texts)

		observability.RecordRequest("explain_topic", "success")
		c.JSON(http.StatusOK, datatypes.ExplainTopicResponse{
			Topic:       summary.Topic,
			Explanation: summary.Explanation,
			KeyPoints:   summary.KeyPoints,
			Query:       req.Query,
		})
	}
}

// topicMinChunks is the retrieval floor for topic explanations.
const topicMinChunks = 5

// IngestDocument handles POST /v1/knowledge/documents, chunking and
// storing one knowledge document.
func IngestDocument(ingestor *knowledge.Ingestor) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "handlers.IngestDocument")
		defer span.End()

		var req knowledge.IngestRequest
		if err := c.BindJSON(&req); err != nil {
			observability.RecordRequest("ingest", "error")
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		stored, err := ingestor.Ingest(ctx, req)
		if err != nil {
			span.RecordError(err)
			observability.RecordRequest("ingest", "error")
			slog.Error("ingestion failed", "source", req.Source, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		observability.RecordRequest("ingest", "success")
		c.JSON(http.StatusCreated, gin.H{
			"status":        "success",
			"source":        req.Source,
			"chunks_stored": stored,
		})
	}
}
