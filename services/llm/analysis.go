// Copyright (C) 2025 StepSage AI (dev@stepsage.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// Trace sampling bounds for the analysis prompt. Long traces would blow
// the context window; the head carries setup and the tail the outcome.
const (
	sampleHead = 50
	sampleTail = 5
)

// StepDigest is the compact per-step view included in the analysis
// prompt. Callers build it from their enriched steps.
type StepDigest struct {
	Step      int            `json:"step"`
	Line      int            `json:"line"`
	Variables map[string]any `json:"variables"`
}

// DataStructure is one identified structure in the analyzed program.
type DataStructure struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// StructureAnalysis is the model's structural reading of a program run.
type StructureAnalysis struct {
	Structures []DataStructure `json:"structures"`
	Summary    string          `json:"summary"`
}

// StructureAnalyzer asks the LLM backend for a structural reading of a
// traced program. A nil backend disables analysis without error.
type StructureAnalyzer struct {
	client LLMClient
	logger *slog.Logger
}

// NewStructureAnalyzer creates an analyzer. client may be nil, in which
// case Analyze returns (nil, nil).
func NewStructureAnalyzer(client LLMClient, logger *slog.Logger) *StructureAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &StructureAnalyzer{client: client, logger: logger}
}

// Enabled reports whether a backend is configured.
func (a *StructureAnalyzer) Enabled() bool { return a.client != nil }

// Analyze returns the model's structural analysis of the program, or
// (nil, nil) when no backend is configured.
func (a *StructureAnalyzer) Analyze(ctx context.Context, code string, steps []StepDigest) (*StructureAnalysis, error) {
	if a.client == nil {
		return nil, nil
	}

	prompt, err := buildAnalysisPrompt(code, steps)
	if err != nil {
		return nil, err
	}

	temperature := float32(0.1)
	raw, err := a.client.Generate(ctx, prompt, GenerationParams{Temperature: &temperature})
	if err != nil {
		return nil, fmt.Errorf("structure analysis: %w", err)
	}

	analysis, err := parseAnalysisResponse(raw)
	if err != nil {
		return nil, err
	}

	a.logger.Info("structural analysis complete",
		"structures", len(analysis.Structures))
	return analysis, nil
}

// buildAnalysisPrompt assembles the strict-JSON prompt with a sampled
// trace.
func buildAnalysisPrompt(code string, steps []StepDigest) (string, error) {
	sampled := sampleSteps(steps)
	traceJSON, err := json.Marshal(sampled)
	if err != nil {
		return "", fmt.Errorf("marshal trace sample: %w", err)
	}

	var b strings.Builder
	b.WriteString("Analyze the following program and its execution trace.\n\n")
	b.WriteString("Program:\n")
	b.WriteString(code)
	b.WriteString("\n\nTrace sample (")
	fmt.Fprintf(&b, "%d of %d steps", len(sampled), len(steps))
	b.WriteString("):\n")
	b.Write(traceJSON)
	b.WriteString("\n\nRespond with ONLY a JSON object of this exact shape:\n")
	b.WriteString(`{"structures": [{"name": "...", "type": "...", "description": "..."}], "summary": "..."}`)
	b.WriteString("\nDo not include markdown fences or any text outside the JSON.")
	return b.String(), nil
}

// sampleSteps keeps the first sampleHead and last sampleTail steps.
func sampleSteps(steps []StepDigest) []StepDigest {
	if len(steps) <= sampleHead+sampleTail {
		return steps
	}
	sampled := make([]StepDigest, 0, sampleHead+sampleTail)
	sampled = append(sampled, steps[:sampleHead]...)
	sampled = append(sampled, steps[len(steps)-sampleTail:]...)
	return sampled
}

// parseAnalysisResponse decodes the model output, tolerating markdown
// fences the model was told not to emit but sometimes does anyway.
func parseAnalysisResponse(raw string) (*StructureAnalysis, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var analysis StructureAnalysis
	if err := json.Unmarshal([]byte(cleaned), &analysis); err != nil {
		return nil, fmt.Errorf("decode analysis response: %w", err)
	}
	return &analysis, nil
}
