// Copyright (C) 2025 StepSage AI (dev@stepsage.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package explainer

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
)

// =============================================================================
// Concept Vocabulary
// =============================================================================

// ConceptTag is a semantic label from a fixed, closed vocabulary describing
// the kind of operation observed at a step.
type ConceptTag string

const (
	ConceptAssignment        ConceptTag = "assignment"
	ConceptArithmetic        ConceptTag = "arithmetic"
	ConceptComparison        ConceptTag = "comparison"
	ConceptLogicalOperation  ConceptTag = "logical_operation"
	ConceptConditional       ConceptTag = "conditional"
	ConceptIteration         ConceptTag = "iteration"
	ConceptFunctionCall      ConceptTag = "function_call"
	ConceptFunctionReturn    ConceptTag = "function_return"
	ConceptExceptionHandling ConceptTag = "exception_handling"
	ConceptIndexing          ConceptTag = "indexing"
	ConceptMapping           ConceptTag = "mapping"
	ConceptText              ConceptTag = "text"
	ConceptListComprehension ConceptTag = "list_comprehension"
	ConceptMutation          ConceptTag = "mutation"
	ConceptGrowth            ConceptTag = "growth"
	ConceptShrink            ConceptTag = "shrink"
	ConceptScopeExit         ConceptTag = "scope_exit"
	ConceptNumeric           ConceptTag = "numeric"
	ConceptOrderedCollection ConceptTag = "ordered_collection"
)

// =============================================================================
// Rule Table
// =============================================================================

// ruleInput carries everything a concept rule may inspect: the literal
// source line, the step's state diff, and the event context relative to
// the previous step.
type ruleInput struct {
	source    string
	lower     string
	diff      *StateDiff
	event     string
	depth     int
	prevDepth int
}

// conceptRule is one independent predicate: it inspects the input and
// either matches (contributing its tag) or does not. Rules never depend
// on each other; the extractor applies all of them and unions the result.
type conceptRule struct {
	tag   ConceptTag
	match func(in ruleInput) bool
}

var (
	callPattern          = regexp.MustCompile(`\w+\s*\(`)
	comprehensionPattern = regexp.MustCompile(`\[.*for.*in.*\]`)
	textLiteralPattern   = regexp.MustCompile(`["'].*["']`)

	conditionalKeywords = wordPattern("if", "elif", "else")
	iterationKeywords   = wordPattern("for", "while", "in")
	functionKeywords    = wordPattern("def", "return")
	exceptionKeywords   = wordPattern("try", "except", "finally", "raise")
	logicalKeywords     = wordPattern("and", "or", "not")
)

// wordPattern builds a word-boundary alternation so keyword matches never
// fire on substrings inside identifiers (e.g. "in" inside "print").
func wordPattern(words ...string) *regexp.Regexp {
	escaped := make([]string, len(words))
	for i, w := range words {
		escaped[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`\b(` + strings.Join(escaped, "|") + `)\b`)
}

// Operator tables scanned as substrings of the source line. Two-character
// operators are listed before their one-character prefixes where order
// matters for exclusion logic.
var (
	arithmeticOperators = []string{"+", "-", "*", "/", "//", "%", "**"}
	comparisonOperators = []string{"==", "!=", "<", ">", "<=", ">="}
)

// containsAny reports whether the source contains any of the operators.
func containsAny(source string, ops []string) bool {
	for _, op := range ops {
		if strings.Contains(source, op) {
			return true
		}
	}
	return false
}

// conceptRules is the ordered rule table. Lexical rules come first, then
// state-diff rules, then event/depth rules; ordering only affects log
// output since results are unioned and sorted.
var conceptRules = []conceptRule{
	// --- Lexical rules over the literal source line ---
	{ConceptConditional, func(in ruleInput) bool {
		return in.lower != "" && conditionalKeywords.MatchString(in.lower)
	}},
	{ConceptIteration, func(in ruleInput) bool {
		return in.lower != "" && iterationKeywords.MatchString(in.lower)
	}},
	{ConceptFunctionCall, func(in ruleInput) bool {
		return in.lower != "" && functionKeywords.MatchString(in.lower)
	}},
	{ConceptExceptionHandling, func(in ruleInput) bool {
		return in.lower != "" && exceptionKeywords.MatchString(in.lower)
	}},
	{ConceptArithmetic, func(in ruleInput) bool {
		return containsAny(in.source, arithmeticOperators)
	}},
	{ConceptComparison, func(in ruleInput) bool {
		return containsAny(in.source, comparisonOperators)
	}},
	{ConceptLogicalOperation, func(in ruleInput) bool {
		return in.lower != "" && logicalKeywords.MatchString(in.lower)
	}},
	{ConceptAssignment, func(in ruleInput) bool {
		// Equality and inequality must not read as assignment.
		return strings.Contains(in.source, "=") &&
			!strings.Contains(in.source, "==") &&
			!strings.Contains(in.source, "!=")
	}},
	{ConceptIndexing, func(in ruleInput) bool {
		return strings.Contains(in.source, "[") && strings.Contains(in.source, "]")
	}},
	{ConceptFunctionCall, func(in ruleInput) bool {
		return callPattern.MatchString(in.source)
	}},
	{ConceptListComprehension, func(in ruleInput) bool {
		return comprehensionPattern.MatchString(in.source)
	}},
	{ConceptMapping, func(in ruleInput) bool {
		return strings.Contains(in.source, "{") &&
			strings.Contains(in.source, ":") &&
			strings.Contains(in.source, "}")
	}},
	{ConceptText, func(in ruleInput) bool {
		return textLiteralPattern.MatchString(in.source)
	}},

	// --- State-diff rules ---
	{ConceptAssignment, func(in ruleInput) bool {
		return len(in.diff.Created) > 0
	}},
	{ConceptOrderedCollection, func(in ruleInput) bool {
		return anyCreatedKind(in.diff, KindList)
	}},
	{ConceptMapping, func(in ruleInput) bool {
		return anyCreatedKind(in.diff, KindMap)
	}},
	{ConceptNumeric, func(in ruleInput) bool {
		return anyCreatedKind(in.diff, KindNumber)
	}},
	{ConceptText, func(in ruleInput) bool {
		return anyCreatedKind(in.diff, KindText)
	}},
	{ConceptMutation, func(in ruleInput) bool {
		return len(in.diff.Modified) > 0
	}},
	{ConceptArithmetic, func(in ruleInput) bool {
		for _, c := range in.diff.Modified {
			if c.Old.IsNumeric() && c.New.IsNumeric() {
				return true
			}
		}
		return false
	}},
	{ConceptGrowth, func(in ruleInput) bool {
		for _, c := range in.diff.Modified {
			if c.Old.Kind == KindList && c.New.Kind == KindList && c.New.Len() > c.Old.Len() {
				return true
			}
		}
		return false
	}},
	{ConceptShrink, func(in ruleInput) bool {
		for _, c := range in.diff.Modified {
			if c.Old.Kind == KindList && c.New.Kind == KindList && c.New.Len() < c.Old.Len() {
				return true
			}
		}
		return false
	}},
	{ConceptScopeExit, func(in ruleInput) bool {
		return len(in.diff.Removed) > 0
	}},

	// --- Event/depth rules ---
	{ConceptFunctionCall, func(in ruleInput) bool {
		return in.depth > in.prevDepth || in.event == EventCall
	}},
	{ConceptFunctionReturn, func(in ruleInput) bool {
		return in.depth < in.prevDepth || in.event == EventReturn
	}},
}

// anyCreatedKind reports whether any created variable has the given kind.
func anyCreatedKind(diff *StateDiff, kind ValueKind) bool {
	for _, c := range diff.Created {
		if c.New.Kind == kind {
			return true
		}
	}
	return false
}

// =============================================================================
// Concept Extractor
// =============================================================================

// ConceptExtractor tags trace steps with semantic concepts by applying the
// rule table to lexical, state-diff, and event signals. Stateless and safe
// for concurrent use.
type ConceptExtractor struct {
	logger *slog.Logger
}

// NewConceptExtractor creates a ConceptExtractor. A nil logger uses
// slog.Default().
func NewConceptExtractor(logger *slog.Logger) *ConceptExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConceptExtractor{logger: logger}
}

// ExtractStep returns the sorted, deduplicated union of every rule that
// matches the step. prev may be nil for the first step, in which case the
// previous depth is taken as 0.
func (x *ConceptExtractor) ExtractStep(step ProcessedStep, diff StateDiff, prev *ProcessedStep) []ConceptTag {
	prevDepth := 0
	if prev != nil {
		prevDepth = prev.Depth
	}

	in := ruleInput{
		source:    step.Source,
		lower:     strings.ToLower(strings.TrimSpace(step.Source)),
		diff:      &diff,
		event:     step.Event,
		depth:     step.Depth,
		prevDepth: prevDepth,
	}

	matched := make(map[ConceptTag]struct{})
	for _, rule := range conceptRules {
		if rule.match(in) {
			matched[rule.tag] = struct{}{}
		}
	}

	tags := make([]ConceptTag, 0, len(matched))
	for tag := range matched {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })

	x.logger.Debug("extracted concepts", "line", step.Line, "concepts", tags)
	return tags
}

// ExtractTrace applies ExtractStep across a whole trace paired with its
// diffs. It refuses misaligned inputs with an AlignmentError instead of
// silently zipping to the shorter length.
func (x *ConceptExtractor) ExtractTrace(trace []ProcessedStep, diffs []StateDiff) ([][]ConceptTag, error) {
	if len(trace) != len(diffs) {
		return nil, &AlignmentError{Kind: "diffs", Want: len(trace), Got: len(diffs)}
	}

	all := make([][]ConceptTag, 0, len(trace))
	var prev *ProcessedStep
	for i := range trace {
		all = append(all, x.ExtractStep(trace[i], diffs[i], prev))
		prev = &trace[i]
	}

	x.logger.Info("extracted concepts for trace", "steps", len(all))
	return all, nil
}

// TagsToStrings converts concept tags to plain strings for query building
// and transport.
func TagsToStrings(tags []ConceptTag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = string(t)
	}
	return out
}
