// Copyright (C) 2025 StepSage AI (dev@stepsage.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the HTTP handlers for the explanation API.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/stepsage-ai/stepsage/services/execution"
	"github.com/stepsage-ai/stepsage/services/explainer"
	"github.com/stepsage-ai/stepsage/services/llm"
	"github.com/stepsage-ai/stepsage/services/orchestrator/datatypes"
	"github.com/stepsage-ai/stepsage/services/orchestrator/observability"
)

var tracer = otel.Tracer("stepsage.orchestrator")

// ExplainTrace handles POST /v1/explain/trace.
//
// The request either carries a pre-recorded trace or just code; in the
// latter case the execution service produces the trace first. knowledge
// may be nil, which disables insight segments.
func ExplainTrace(exec *execution.Client, knowledgeSource explainer.KnowledgeSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "handlers.ExplainTrace")
		defer span.End()

		var req datatypes.ExplainTraceRequest
		if err := c.BindJSON(&req); err != nil {
			observability.RecordRequest("explain_trace", "error")
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			observability.RecordRequest("explain_trace", "error")
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		span.SetAttributes(
			attribute.String("level", req.Level),
			attribute.Bool("trace_provided", len(req.Trace) > 0),
		)

		start := time.Now()
		if observability.DefaultMetrics != nil {
			observability.DefaultMetrics.ActiveExplanations.Inc()
			defer observability.DefaultMetrics.ActiveExplanations.Dec()
		}

		resp := datatypes.ExplainTraceResponse{Level: req.Level}
		raw := req.Trace
		if len(raw) == 0 {
			if exec == nil {
				observability.RecordRequest("explain_trace", "error")
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no trace provided and execution service not configured"})
				return
			}
			result, err := exec.Execute(ctx, execution.ExecuteRequest{
				Code:     req.Code,
				Language: req.Language,
				Stdin:    req.Stdin,
			})
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "execution failed")
				observability.RecordRequest("explain_trace", "error")
				slog.Error("execution failed", "error", err)
				c.JSON(http.StatusBadGateway, gin.H{"error": "execution failed: " + err.Error()})
				return
			}
			raw = result.Trace
			resp.Output = result.Output
			resp.Exception = result.Exception
		}
		observability.ObserveTraceSteps("raw", len(raw))

		stepExplainer, err := explainer.NewStepExplainer(explainer.Config{
			Level:              explainer.Level(req.Level),
			TopK:               req.TopK,
			Knowledge:          knowledgeSource,
			OnRetrievalFailure: observability.RecordRetrievalFailure,
		})
		if err != nil {
			observability.RecordRequest("explain_trace", "error")
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		steps, err := stepExplainer.ExplainTrace(ctx, req.Code, raw)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "explanation failed")
			observability.RecordRequest("explain_trace", "error")
			status := http.StatusInternalServerError
			if explainer.IsAlignmentError(err) {
				slog.Error("pipeline alignment violation", "error", err)
			}
			c.JSON(status, gin.H{"error": "explanation failed"})
			return
		}
		resp.Steps = steps

		observability.ObserveTraceSteps("retained", len(steps))
		observability.ObserveExplainDuration(req.Level, time.Since(start).Seconds())
		observability.RecordRequest("explain_trace", "success")
		span.SetAttributes(attribute.Int("steps", len(steps)))

		c.JSON(http.StatusOK, resp)
	}
}

// ExplainStructure handles POST /v1/explain/structure.
//
// Returns 503 when no LLM backend is configured rather than a misleading
// empty analysis.
func ExplainStructure(exec *execution.Client, analyzer *llm.StructureAnalyzer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "handlers.ExplainStructure")
		defer span.End()

		if analyzer == nil || !analyzer.Enabled() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "structural analysis not configured"})
			return
		}

		var req datatypes.ExplainStructureRequest
		if err := c.BindJSON(&req); err != nil {
			observability.RecordRequest("explain_structure", "error")
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		raw := req.Trace
		if len(raw) == 0 {
			if exec == nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no trace provided and execution service not configured"})
				return
			}
			result, err := exec.Execute(ctx, execution.ExecuteRequest{Code: req.Code})
			if err != nil {
				span.RecordError(err)
				observability.RecordRequest("explain_structure", "error")
				c.JSON(http.StatusBadGateway, gin.H{"error": "execution failed: " + err.Error()})
				return
			}
			raw = result.Trace
		}

		digests := make([]llm.StepDigest, len(raw))
		for i, step := range raw {
			digests[i] = llm.StepDigest{
				Step:      step.Step,
				Line:      step.Line,
				Variables: step.Variables,
			}
		}

		analysis, err := analyzer.Analyze(ctx, req.Code, digests)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "analysis failed")
			observability.RecordRequest("explain_structure", "error")
			slog.Error("structural analysis failed", "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "structural analysis failed"})
			return
		}

		observability.RecordRequest("explain_structure", "success")
		c.JSON(http.StatusOK, datatypes.ExplainStructureResponse{Analysis: analysis})
	}
}

// errStatus maps a retrieval failure to an HTTP status.
func errStatus(err error) int {
	var netLike interface{ Timeout() bool }
	if errors.As(err, &netLike) && netLike.Timeout() {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}
