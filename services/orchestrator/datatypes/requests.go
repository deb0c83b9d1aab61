// Copyright (C) 2025 StepSage AI (dev@stepsage.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes defines the request and response shapes of the HTTP
// surface.
package datatypes

import (
	"fmt"

	"github.com/stepsage-ai/stepsage/services/explainer"
	"github.com/stepsage-ai/stepsage/services/knowledge"
	"github.com/stepsage-ai/stepsage/services/llm"
)

// ExplainTraceRequest asks for a leveled explanation of a program run.
//
// When Trace is provided it is explained directly; otherwise the code is
// sent to the execution service to produce one.
type ExplainTraceRequest struct {
	// Code is the program source. Required.
	Code string `json:"code" binding:"required"`

	// Level is the explanation level: beginner, medium, interview_ready.
	// Default: medium.
	Level string `json:"level"`

	// Language is the execution language. Default: python.
	Language string `json:"language"`

	// Stdin is optional input for the executed program.
	Stdin string `json:"stdin"`

	// Trace is an optional pre-recorded raw trace. When present, the
	// execution service is not called.
	Trace []explainer.RawStep `json:"trace"`

	// TopK overrides the per-step knowledge fan-out. Default: 3.
	TopK int `json:"top_k"`
}

// Validate normalizes the level and rejects unknown values.
func (r *ExplainTraceRequest) Validate() error {
	if r.Code == "" {
		return fmt.Errorf("code must not be empty")
	}
	if r.Level == "" {
		r.Level = string(explainer.LevelMedium)
	}
	level, err := explainer.ParseLevel(r.Level)
	if err != nil {
		return err
	}
	r.Level = string(level)
	return nil
}

// ExplainTraceResponse carries the enriched steps plus the program's own
// output and exception, passed through unchanged from execution.
type ExplainTraceResponse struct {
	Level     string                   `json:"level"`
	Output    string                   `json:"output,omitempty"`
	Exception string                   `json:"exception,omitempty"`
	Steps     []explainer.EnrichedStep `json:"steps"`
}

// ExplainStructureRequest asks for an LLM structural analysis of a run.
type ExplainStructureRequest struct {
	Code  string              `json:"code" binding:"required"`
	Trace []explainer.RawStep `json:"trace"`
}

// ExplainStructureResponse wraps the structural analysis.
type ExplainStructureResponse struct {
	Analysis *llm.StructureAnalysis `json:"analysis"`
}

// RetrieveRequest is a direct knowledge-store query.
type RetrieveRequest struct {
	// Query is the semantic search text. Required.
	Query string `json:"query" binding:"required"`

	// Concept optionally filters to a single concept tag.
	Concept string `json:"concept"`

	// Limit caps the number of returned chunks. Default: 5.
	Limit int `json:"limit"`
}

// RetrieveResponse returns plain chunk texts.
type RetrieveResponse struct {
	Chunks []string `json:"chunks"`
}

// RetrieveDetailedResponse returns chunks with scores and provenance.
type RetrieveDetailedResponse struct {
	Chunks []knowledge.Chunk `json:"chunks"`
}

// RetrieveCleanResponse returns sanitized chunk summaries, stripped of
// markup and shortened to their leading sentences.
type RetrieveCleanResponse struct {
	Summaries []string `json:"summaries"`
	Query     string   `json:"query"`
	Count     int      `json:"count"`
}

// ExplainTopicResponse is a structured topic explanation assembled from
// retrieved knowledge.
type ExplainTopicResponse struct {
	Topic       string   `json:"topic"`
	Explanation string   `json:"explanation"`
	KeyPoints   []string `json:"key_points"`
	Query       string   `json:"query"`
}

// HealthResponse reports service liveness and collaborator status.
type HealthResponse struct {
	Status    string `json:"status"`
	Knowledge string `json:"knowledge"`
	LLM       string `json:"llm"`
}
