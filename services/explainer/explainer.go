// Copyright (C) 2025 StepSage AI (dev@stepsage.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package explainer turns raw execution recordings into leveled,
// knowledge-grounded natural-language explanations.
//
// The pipeline is strictly linear: the Normalizer cleans and re-indexes
// the raw trace, the DiffEngine computes created/modified/removed variable
// sets between consecutive steps, the ConceptExtractor tags each step with
// semantic concepts, and the StepExplainer synthesizes one explanation per
// step, optionally grounded in passages from an external knowledge source.
//
// # Statelessness
//
// Every type here is stateless across traces: all intermediate entities
// are created fresh per call and discarded with the result, so independent
// traces may be processed concurrently with no coordination. The only
// blocking operation is the per-step knowledge retrieval call, which is
// context-bounded and whose failure degrades the explanation to its
// mechanical base segment instead of aborting the trace.
//
// # Errors
//
// Empty input is not an error: it yields an empty output. The only fatal
// per-trace failure is an AlignmentError, raised when parallel per-step
// sequences of mismatched length reach a fold; partial or silently
// misaligned output is never produced.
package explainer

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// explainTracer is the OpenTelemetry tracer for explanation synthesis.
var explainTracer = otel.Tracer("stepsage.explainer")

// defaultTopK is the knowledge fan-out used when none is configured.
const defaultTopK = 3

// =============================================================================
// Collaborator Interface
// =============================================================================

// KnowledgeSource retrieves grounding passages for a trace step. It is
// the explainer's only outward call.
//
// Implementations must tolerate empty results and should bound their own
// latency; any returned error is recovered locally by the explainer and
// only suppresses the insight segment for that step.
type KnowledgeSource interface {
	// KnowledgeForStep returns up to limit plain-text passages relevant
	// to the step's concepts and literal source line, most relevant first.
	KnowledgeForStep(ctx context.Context, concepts []string, sourceLine string, limit int) ([]string, error)
}

// =============================================================================
// Output Type
// =============================================================================

// EnrichedStep is the final per-step output: the step's identity, its
// variable snapshot as received, and the synthesized explanation.
type EnrichedStep struct {
	Step        int            `json:"step"`
	Line        int            `json:"line"`
	Variables   map[string]any `json:"variables"`
	Explanation string         `json:"explanation"`
}

// =============================================================================
// Step Explainer
// =============================================================================

// Config configures a StepExplainer. Level and the knowledge fan-out are
// the only externally tunable parameters of the core pipeline.
type Config struct {
	// Level selects explanation verbosity and technicality.
	// Default: LevelMedium.
	Level Level

	// TopK is the number of knowledge passages requested per step.
	// Default: 3.
	TopK int

	// Knowledge is the retrieval collaborator. May be nil, in which case
	// explanations consist of base segments only.
	Knowledge KnowledgeSource

	// OnRetrievalFailure is invoked once per step whose knowledge
	// retrieval fails and degrades to the base segment. May be nil.
	OnRetrievalFailure func()

	// Logger for pipeline operations. Default: slog.Default().
	Logger *slog.Logger
}

// StepExplainer orchestrates normalization, diffing, concept extraction,
// and rendering into enriched steps. It holds no state across traces
// beyond its configuration and is safe for concurrent use.
type StepExplainer struct {
	level              Level
	topK               int
	knowledge          KnowledgeSource
	onRetrievalFailure func()
	diffEngine         *DiffEngine
	extractor          *ConceptExtractor
	logger             *slog.Logger
}

// NewStepExplainer creates a StepExplainer from config.
//
// An empty level defaults to medium; an invalid level is rejected with
// ErrUnknownLevel so a bad request never half-configures the pipeline.
func NewStepExplainer(cfg Config) (*StepExplainer, error) {
	level := cfg.Level
	if level == "" {
		level = LevelMedium
	} else {
		parsed, err := ParseLevel(string(level))
		if err != nil {
			return nil, err
		}
		level = parsed
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &StepExplainer{
		level:              level,
		topK:               topK,
		knowledge:          cfg.Knowledge,
		onRetrievalFailure: cfg.OnRetrievalFailure,
		diffEngine:         NewDiffEngine(logger),
		extractor:          NewConceptExtractor(logger),
		logger:             logger,
	}, nil
}

// Level returns the configured explanation level.
func (e *StepExplainer) Level() Level { return e.level }

// ExplainTrace runs the full per-trace pipeline and returns one enriched
// step per processed step, in input order.
//
// An empty or fully filtered trace yields an empty slice, never an error.
// Knowledge-retrieval failures degrade individual steps to their base
// segment; only an internal alignment violation aborts the trace.
func (e *StepExplainer) ExplainTrace(ctx context.Context, code string, raw []RawStep) ([]EnrichedStep, error) {
	ctx, span := explainTracer.Start(ctx, "StepExplainer.ExplainTrace")
	defer span.End()
	span.SetAttributes(
		attribute.Int("raw_steps", len(raw)),
		attribute.String("level", string(e.level)),
	)

	if len(raw) == 0 {
		e.logger.Warn("empty trace provided to explainer")
		return []EnrichedStep{}, nil
	}

	normalizer := NewNormalizer(code, e.logger)
	processed := normalizer.Normalize(raw)
	if len(processed) == 0 {
		return []EnrichedStep{}, nil
	}

	diffs := e.diffEngine.ComputeTraceDiffs(processed)

	conceptsPerStep, err := e.extractor.ExtractTrace(processed, diffs)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	enriched := make([]EnrichedStep, 0, len(processed))
	for i, step := range processed {
		explanation := e.explainStep(ctx, step, diffs[i], conceptsPerStep[i])
		enriched = append(enriched, EnrichedStep{
			Step:        step.Step,
			Line:        step.Line,
			Variables:   step.RawVariables,
			Explanation: explanation,
		})
	}

	span.SetAttributes(attribute.Int("enriched_steps", len(enriched)))
	e.logger.Info("generated explanations",
		"steps", len(enriched),
		"level", string(e.level),
	)
	return enriched, nil
}

// explainStep renders one step: mechanical base segment, then an optional
// knowledge-grounded insight segment when retrieval is warranted.
func (e *StepExplainer) explainStep(ctx context.Context, step ProcessedStep, diff StateDiff, tags []ConceptTag) string {
	// Degenerate step: nothing changed and no source text to describe.
	if !diff.HasChanges() && step.Source == "" {
		if step.Step == 1 {
			return "Program execution begins."
		}
		return render(e.level, segLineRef, renderContext{line: step.Line})
	}

	base := e.baseSegment(step, diff)

	// Retrieval gating: only steps with observable changes and at least
	// one concept produce a grounded insight; everything else would
	// retrieve noise.
	if !diff.HasChanges() || len(tags) == 0 || e.knowledge == nil {
		return base
	}

	chunks, err := e.knowledge.KnowledgeForStep(ctx, TagsToStrings(tags), step.Source, e.topK)
	if err != nil {
		e.logger.Warn("knowledge retrieval failed, using base explanation",
			"step", step.Step,
			"line", step.Line,
			"error", err,
		)
		if e.onRetrievalFailure != nil {
			e.onRetrievalFailure()
		}
		return base
	}

	insight := selectInsight(e.level, chunks)
	if insight == "" {
		return base
	}
	return render(e.level, segCombine, renderContext{base: base, insight: insight})
}

// baseSegment renders the level-styled mechanical description of the step:
// the executing line, then each variable change in created, modified,
// removed order.
func (e *StepExplainer) baseSegment(step ProcessedStep, diff StateDiff) string {
	var parts []string

	if step.Source != "" {
		parts = append(parts, render(e.level, segExecLine, renderContext{line: step.Line, source: step.Source}))
	}
	for _, change := range diff.Created {
		parts = append(parts, render(e.level, segCreated, renderContext{change: change}))
	}
	for _, change := range diff.Modified {
		parts = append(parts, render(e.level, segModified, renderContext{change: change}))
	}
	for _, change := range diff.Removed {
		parts = append(parts, render(e.level, segRemoved, renderContext{change: change}))
	}

	if len(parts) == 0 {
		return render(e.level, segLineRef, renderContext{line: step.Line})
	}
	return strings.Join(parts, " ")
}
