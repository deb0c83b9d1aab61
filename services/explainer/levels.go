// Copyright (C) 2025 StepSage AI (dev@stepsage.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package explainer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// =============================================================================
// Explanation Levels
// =============================================================================

// Level controls verbosity, technical density, and which knowledge
// sentences an explanation prefers.
type Level string

const (
	// LevelBeginner produces full plain-language sentences.
	LevelBeginner Level = "beginner"
	// LevelMedium produces compact "name: old -> new" phrasing.
	LevelMedium Level = "medium"
	// LevelInterviewReady produces terse phrasing with complexity
	// annotations for recognized value categories.
	LevelInterviewReady Level = "interview_ready"
)

// ParseLevel normalizes and validates a level string.
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelBeginner:
		return LevelBeginner, nil
	case LevelMedium:
		return LevelMedium, nil
	case LevelInterviewReady:
		return LevelInterviewReady, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownLevel, s)
	}
}

// Levels returns the valid levels in ascending technicality order.
func Levels() []Level {
	return []Level{LevelBeginner, LevelMedium, LevelInterviewReady}
}

// =============================================================================
// Render Table
// =============================================================================

// segmentKind names one renderable piece of an explanation. Rendering is
// table-driven: every (level, segment) pair maps to a row, so adding a
// level means adding rows, not new control flow.
type segmentKind int

const (
	// segCreated renders one created-variable change.
	segCreated segmentKind = iota
	// segModified renders one modified-variable change.
	segModified
	// segRemoved renders one removed-variable change.
	segRemoved
	// segExecLine renders the "executing line" prefix.
	segExecLine
	// segLineRef renders the degenerate no-change, no-source fallback.
	segLineRef
	// segCombine joins the base segment with the insight segment.
	segCombine
)

// renderContext carries the inputs a render row may use. Only the fields
// relevant to the segment kind are populated.
type renderContext struct {
	change  VariableChange
	line    int
	source  string
	base    string
	insight string
}

type renderKey struct {
	level   Level
	segment segmentKind
}

type renderFunc func(rc renderContext) string

// renderTable is the complete per-level template set.
var renderTable = map[renderKey]renderFunc{
	// --- beginner: full sentences with plain-language type labels ---
	{LevelBeginner, segCreated}: func(rc renderContext) string {
		return fmt.Sprintf("Variable `%s` is created with value %s (%s).",
			rc.change.Name, rc.change.New.String(), rc.change.New.TypeLabel())
	},
	{LevelBeginner, segModified}: func(rc renderContext) string {
		return fmt.Sprintf("Variable `%s` changes from %s to %s.",
			rc.change.Name, rc.change.Old.String(), rc.change.New.String())
	},
	{LevelBeginner, segRemoved}: func(rc renderContext) string {
		return fmt.Sprintf("Variable `%s` goes out of scope and is removed.", rc.change.Name)
	},
	{LevelBeginner, segExecLine}: func(rc renderContext) string {
		return fmt.Sprintf("Line %d runs `%s`.", rc.line, rc.source)
	},
	{LevelBeginner, segLineRef}: func(rc renderContext) string {
		return fmt.Sprintf("The program is at line %d.", rc.line)
	},
	{LevelBeginner, segCombine}: func(rc renderContext) string {
		return rc.base + " This happens because " + lowerFirst(rc.insight)
	},

	// --- medium: compact name/value phrasing ---
	{LevelMedium, segCreated}: func(rc renderContext) string {
		return fmt.Sprintf("%s = %s", rc.change.Name, rc.change.New.String())
	},
	{LevelMedium, segModified}: func(rc renderContext) string {
		return fmt.Sprintf("%s: %s -> %s", rc.change.Name, rc.change.Old.String(), rc.change.New.String())
	},
	{LevelMedium, segRemoved}: func(rc renderContext) string {
		return fmt.Sprintf("%s removed", rc.change.Name)
	},
	{LevelMedium, segExecLine}: func(rc renderContext) string {
		return fmt.Sprintf("Line %d: `%s`.", rc.line, rc.source)
	},
	{LevelMedium, segLineRef}: func(rc renderContext) string {
		return fmt.Sprintf("Line %d.", rc.line)
	},
	{LevelMedium, segCombine}: func(rc renderContext) string {
		return rc.base + " " + rc.insight
	},

	// --- interview_ready: terse phrasing with cost-class annotations ---
	{LevelInterviewReady, segCreated}: func(rc renderContext) string {
		return fmt.Sprintf("%s = %s%s", rc.change.Name, rc.change.New.String(),
			creationAnnotation(*rc.change.New))
	},
	{LevelInterviewReady, segModified}: func(rc renderContext) string {
		return fmt.Sprintf("%s: %s -> %s%s", rc.change.Name, rc.change.Old.String(),
			rc.change.New.String(), mutationAnnotation(*rc.change.Old, *rc.change.New))
	},
	{LevelInterviewReady, segRemoved}: func(rc renderContext) string {
		return fmt.Sprintf("%s dropped (scope exit)", rc.change.Name)
	},
	{LevelInterviewReady, segExecLine}: func(rc renderContext) string {
		return fmt.Sprintf("L%d: `%s`.", rc.line, rc.source)
	},
	{LevelInterviewReady, segLineRef}: func(rc renderContext) string {
		return fmt.Sprintf("L%d.", rc.line)
	},
	{LevelInterviewReady, segCombine}: func(rc renderContext) string {
		return rc.base + " " + rc.insight
	},
}

// render looks up and applies the table row for (level, segment).
// Unknown pairs yield "" so a bad level never panics mid-trace.
func render(level Level, segment segmentKind, rc renderContext) string {
	if fn, ok := renderTable[renderKey{level, segment}]; ok {
		return fn(rc)
	}
	return ""
}

// =============================================================================
// Complexity Annotations
// =============================================================================

// creationAnnotation returns the fixed technical annotation appended to
// interview_ready creation phrases for recognized value categories.
func creationAnnotation(v Value) string {
	switch {
	case v.Kind == KindList && v.Len() == 0:
		return " (list: O(1) amortized append, O(1) index access)"
	case v.Kind == KindMap:
		return " (dict: O(1) average lookup, O(n) worst case)"
	default:
		return ""
	}
}

// mutationAnnotation returns the cost-class annotation matching growth,
// shrink, or same-length update of an ordered collection.
func mutationAnnotation(before, after Value) string {
	if before.Kind != KindList || after.Kind != KindList {
		return ""
	}
	switch {
	case after.Len() > before.Len():
		return " (append: O(1) amortized)"
	case after.Len() < before.Len():
		return " (remove: O(n) worst case)"
	default:
		return " (index update: O(1))"
	}
}

// lowerFirst lowercases the first rune so an insight sentence reads
// naturally after "This happens because".
func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError && size <= 1 {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}
