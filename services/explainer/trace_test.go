// Copyright (C) 2025 StepSage AI (dev@stepsage.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package explainer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCode = "a = 5\nb = 3\nsum_val = a + b"

func TestNormalizer_LineContent(t *testing.T) {
	n := NewNormalizer(sampleCode, nil)

	assert.Equal(t, "a = 5", n.LineContent(1))
	assert.Equal(t, "sum_val = a + b", n.LineContent(3))
	assert.Equal(t, "", n.LineContent(0))
	assert.Equal(t, "", n.LineContent(99))
}

func TestNormalize_EmptyTrace(t *testing.T) {
	n := NewNormalizer(sampleCode, nil)
	assert.Empty(t, n.Normalize(nil))
	assert.Empty(t, n.Normalize([]RawStep{}))
}

func TestNormalize_FiltersRedundantFrames(t *testing.T) {
	n := NewNormalizer(sampleCode, nil)
	vars := map[string]any{"a": 5.0}

	raw := []RawStep{
		{Step: 1, Line: 1, Variables: vars},
		{Step: 2, Line: 1, Variables: map[string]any{"a": 5.0}}, // identical, dropped
		{Step: 3, Line: 2, Variables: map[string]any{"a": 5.0, "b": 3.0}},
	}

	processed := n.Normalize(raw)
	require.Len(t, processed, 2)
	assert.Equal(t, 1, processed[0].Line)
	assert.Equal(t, 2, processed[1].Line)
}

func TestNormalize_KeepsLoopRevisits(t *testing.T) {
	// The same (line, state) seen earlier but not immediately before must
	// survive: that is a legitimate revisit, not interpreter noise.
	n := NewNormalizer("for i in range(2):\n    x = i", nil)

	raw := []RawStep{
		{Step: 1, Line: 1, Variables: map[string]any{"i": 0.0}},
		{Step: 2, Line: 2, Variables: map[string]any{"i": 0.0, "x": 0.0}},
		{Step: 3, Line: 1, Variables: map[string]any{"i": 0.0}},
	}

	processed := n.Normalize(raw)
	require.Len(t, processed, 3)
}

func TestNormalize_SameLineDifferentState(t *testing.T) {
	n := NewNormalizer("x += 1", nil)

	raw := []RawStep{
		{Step: 1, Line: 1, Variables: map[string]any{"x": 1.0}},
		{Step: 2, Line: 1, Variables: map[string]any{"x": 2.0}},
	}

	processed := n.Normalize(raw)
	require.Len(t, processed, 2)
}

func TestNormalize_DenseReindexAndDefaults(t *testing.T) {
	n := NewNormalizer(sampleCode, nil)

	raw := []RawStep{
		{Step: 10, Line: 1, Variables: map[string]any{"a": 5.0}},
		{Step: 11, Line: 1, Variables: map[string]any{"a": 5.0}},
		{Step: 12, Line: 2, Variables: map[string]any{"a": 5.0, "b": 3.0}},
	}

	processed := n.Normalize(raw)
	require.Len(t, processed, 2)
	for i, step := range processed {
		assert.Equal(t, i+1, step.Step, "indices must be dense and 1-based")
		assert.Equal(t, "main", step.Function)
		assert.Equal(t, EventLine, step.Event)
		assert.Equal(t, 0, step.Depth)
	}
	assert.Equal(t, "a = 5", processed[0].Source)
}

func TestNormalize_OutOfBoundsLine(t *testing.T) {
	n := NewNormalizer(sampleCode, nil)

	processed := n.Normalize([]RawStep{
		{Step: 1, Line: 50, Variables: map[string]any{"a": 1.0}},
	})
	require.Len(t, processed, 1)
	assert.Equal(t, "", processed[0].Source)
	assert.Equal(t, 50, processed[0].Line)
}

func TestContextWindow(t *testing.T) {
	n := NewNormalizer(sampleCode, nil)

	tests := []struct {
		name      string
		line      int
		window    int
		wantLines []int
	}{
		{"centered", 2, 1, []int{1, 2, 3}},
		{"clipped at start", 1, 2, []int{1, 2, 3}},
		{"clipped at end", 3, 1, []int{2, 3}},
		{"zero window", 2, 0, []int{2}},
		{"out of bounds line", 99, 1, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.ContextWindow(ProcessedStep{Line: tt.line}, tt.window)
			require.Len(t, got, len(tt.wantLines))
			for i, want := range tt.wantLines {
				assert.Equal(t, want, got[i].Line)
				assert.Equal(t, want == tt.line, got[i].Current)
			}
		})
	}
}
