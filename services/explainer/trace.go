// Copyright (C) 2025 StepSage AI (dev@stepsage.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package explainer

import (
	"log/slog"
	"strings"
)

// =============================================================================
// Trace Step Types
// =============================================================================

// Trace event kinds reported by the execution collaborator.
const (
	EventLine      = "line"
	EventCall      = "call"
	EventReturn    = "return"
	EventException = "exception"
	EventFinal     = "final"
)

// defaultScope is the scope name assigned to steps that arrive without one.
const defaultScope = "main"

// RawStep is one observed execution event exactly as the execution
// collaborator reports it. Immutable once received.
type RawStep struct {
	// Step is the sequence index assigned by the tracer.
	Step int `json:"step"`

	// Line is the 1-indexed source line.
	Line int `json:"line"`

	// Function is the enclosing scope name.
	Function string `json:"function"`

	// Event is one of the Event* constants.
	Event string `json:"event"`

	// CallStackDepth is the non-negative call-stack depth.
	CallStackDepth int `json:"call_stack_depth"`

	// Variables is the raw variable snapshot at this step.
	Variables map[string]any `json:"variables"`
}

// ProcessedStep is a RawStep after normalization: densely re-indexed,
// source-annotated, and carrying a canonical snapshot. Never mutated
// after creation.
type ProcessedStep struct {
	// Step is the dense 1-based index assigned after filtering.
	Step int `json:"step"`

	// Line is the 1-indexed source line.
	Line int `json:"line"`

	// Source is the literal text of the line, or "" if out of bounds.
	Source string `json:"source"`

	// Function is the enclosing scope name ("main" when absent).
	Function string `json:"function"`

	// Event is the trace event kind ("line" when absent).
	Event string `json:"event"`

	// Depth is the call-stack depth (0 when absent).
	Depth int `json:"call_stack_depth"`

	// Variables is the canonical snapshot used by the diff engine.
	Variables Snapshot `json:"-"`

	// RawVariables is the snapshot as received, passed through to output.
	RawVariables map[string]any `json:"variables"`
}

// ContextLine is one source line in an execution context window.
type ContextLine struct {
	Line    int    `json:"line_num"`
	Content string `json:"content"`
	Current bool   `json:"is_current"`
}

// =============================================================================
// Trace Normalizer
// =============================================================================

// Normalizer cleans raw execution traces: it drops redundant interpreter
// frames, attaches literal source text per line, re-indexes retained steps,
// and defaults missing fields.
type Normalizer struct {
	codeLines []string
	logger    *slog.Logger
}

// NewNormalizer creates a Normalizer for the given program source text.
func NewNormalizer(code string, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		codeLines: strings.Split(code, "\n"),
		logger:    logger,
	}
}

// LineContent returns the trimmed source text of a 1-indexed line, or ""
// when the line number is out of bounds.
func (n *Normalizer) LineContent(lineNum int) string {
	if lineNum > 0 && lineNum <= len(n.codeLines) {
		return strings.TrimSpace(n.codeLines[lineNum-1])
	}
	return ""
}

// Normalize processes a raw trace into clean, ordered, re-indexed steps.
//
// A step is dropped only when its line number and full variable snapshot
// are identical to the immediately preceding retained step; this collapses
// repeated interpreter-internal visits with no observable change without
// ever reordering. A step identical to one further back is kept, which
// preserves legitimate revisits such as loop iterations.
//
// An empty input yields an empty output, never an error.
func (n *Normalizer) Normalize(raw []RawStep) []ProcessedStep {
	if len(raw) == 0 {
		n.logger.Warn("empty trace provided to normalizer")
		return []ProcessedStep{}
	}

	processed := make([]ProcessedStep, 0, len(raw))
	var prevLine int
	var prevVars Snapshot
	havePrev := false

	for _, step := range raw {
		vars := SnapshotFromRaw(step.Variables)

		if havePrev && step.Line == prevLine && vars.Equal(prevVars) {
			n.logger.Debug("filtering redundant frame", "line", step.Line)
			continue
		}

		function := step.Function
		if function == "" {
			function = defaultScope
		}
		event := step.Event
		if event == "" {
			event = EventLine
		}
		depth := step.CallStackDepth
		if depth < 0 {
			depth = 0
		}

		processed = append(processed, ProcessedStep{
			Step:         len(processed) + 1,
			Line:         step.Line,
			Source:       n.LineContent(step.Line),
			Function:     function,
			Event:        event,
			Depth:        depth,
			Variables:    vars,
			RawVariables: step.Variables,
		})

		prevLine = step.Line
		prevVars = vars
		havePrev = true
	}

	n.logger.Info("normalized trace",
		"raw_steps", len(raw),
		"retained_steps", len(processed),
	)
	return processed
}

// ContextWindow returns up to 2*window+1 source lines centered on the
// step's line, clipped to file bounds, each flagged as current or not.
// Used by explanation rendering for locality context.
func (n *Normalizer) ContextWindow(step ProcessedStep, window int) []ContextLine {
	if window < 0 {
		window = 0
	}
	start := step.Line - window
	if start < 1 {
		start = 1
	}
	end := step.Line + window
	if end > len(n.codeLines) {
		end = len(n.codeLines)
	}
	if end < start {
		return []ContextLine{}
	}

	lines := make([]ContextLine, 0, end-start+1)
	for i := start; i <= end; i++ {
		lines = append(lines, ContextLine{
			Line:    i,
			Content: n.LineContent(i),
			Current: i == step.Line,
		})
	}
	return lines
}
