// Copyright (C) 2025 StepSage AI (dev@stepsage.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package routes wires HTTP routes to their handlers.
package routes

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stepsage-ai/stepsage/services/execution"
	"github.com/stepsage-ai/stepsage/services/explainer"
	"github.com/stepsage-ai/stepsage/services/knowledge"
	"github.com/stepsage-ai/stepsage/services/llm"
	"github.com/stepsage-ai/stepsage/services/orchestrator/handlers"
)

// Deps carries the collaborators routes need. Nil fields disable the
// routes that require them.
type Deps struct {
	Store     *knowledge.Client
	Retriever *knowledge.Retriever
	Ingestor  *knowledge.Ingestor
	Knowledge explainer.KnowledgeSource
	Execution *execution.Client
	Analyzer  *llm.StructureAnalyzer

	// EnableMetrics exposes GET /metrics.
	EnableMetrics bool
}

// SetupRoutes registers all routes on the router.
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.Health(deps.Store, deps.Analyzer))

	if deps.EnableMetrics {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	v1 := router.Group("/v1")
	{
		v1.POST("/explain/trace", handlers.ExplainTrace(deps.Execution, deps.Knowledge))
		v1.POST("/explain/structure", handlers.ExplainStructure(deps.Execution, deps.Analyzer))

		if deps.Retriever != nil {
			v1.POST("/explain/topic", handlers.ExplainTopic(deps.Retriever))
			v1.POST("/knowledge/retrieve", handlers.Retrieve(deps.Retriever))
			v1.POST("/knowledge/retrieve/detailed", handlers.RetrieveDetailed(deps.Retriever))
			v1.POST("/knowledge/retrieve/clean", handlers.RetrieveClean(deps.Retriever))
		} else {
			slog.Info("knowledge store not configured, retrieval routes disabled")
		}
		if deps.Ingestor != nil {
			v1.POST("/knowledge/documents", handlers.IngestDocument(deps.Ingestor))
		}
	}
}
