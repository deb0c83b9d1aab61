// Copyright (C) 2025 StepSage AI (dev@stepsage.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package explainer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKnowledge is a scriptable KnowledgeSource for pipeline tests.
type fakeKnowledge struct {
	chunks   []string
	err      error
	failLine string // when set, only calls whose sourceLine matches fail
	calls    []fakeCall
}

type fakeCall struct {
	concepts []string
	source   string
	limit    int
}

func (f *fakeKnowledge) KnowledgeForStep(_ context.Context, concepts []string, sourceLine string, limit int) ([]string, error) {
	f.calls = append(f.calls, fakeCall{concepts: concepts, source: sourceLine, limit: limit})
	if f.err != nil && (f.failLine == "" || f.failLine == sourceLine) {
		return nil, f.err
	}
	return f.chunks, nil
}

// sumTrace is the canonical three-line scenario with one redundant frame.
func sumTrace() (string, []RawStep) {
	code := "a = 5\nb = 3\nsum_val = a + b"
	raw := []RawStep{
		{Step: 1, Line: 1, Variables: map[string]any{"a": 5.0}},
		{Step: 2, Line: 1, Variables: map[string]any{"a": 5.0}}, // redundant
		{Step: 3, Line: 2, Variables: map[string]any{"a": 5.0, "b": 3.0}},
		{Step: 4, Line: 3, Variables: map[string]any{"a": 5.0, "b": 3.0, "sum_val": 8.0}},
	}
	return code, raw
}

func TestNewStepExplainer_Defaults(t *testing.T) {
	e, err := NewStepExplainer(Config{})
	require.NoError(t, err)
	assert.Equal(t, LevelMedium, e.Level())
}

func TestNewStepExplainer_InvalidLevel(t *testing.T) {
	_, err := NewStepExplainer(Config{Level: "expert"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownLevel)
}

func TestExplainTrace_EmptyInput(t *testing.T) {
	e, err := NewStepExplainer(Config{})
	require.NoError(t, err)

	enriched, err := e.ExplainTrace(context.Background(), "x = 1", nil)
	require.NoError(t, err)
	assert.Empty(t, enriched)
}

func TestExplainTrace_EndToEnd(t *testing.T) {
	code, raw := sumTrace()
	e, err := NewStepExplainer(Config{Level: LevelMedium})
	require.NoError(t, err)

	enriched, err := e.ExplainTrace(context.Background(), code, raw)
	require.NoError(t, err)

	// Redundant frame collapsed, indices dense and 1-based.
	require.Len(t, enriched, 3)
	for i, step := range enriched {
		assert.Equal(t, i+1, step.Step)
		assert.NotEmpty(t, step.Explanation)
	}

	// Step 3 must mention the new variable and its value.
	assert.Contains(t, enriched[2].Explanation, "sum_val")
	assert.Contains(t, enriched[2].Explanation, "8")

	// Variables pass through as received.
	assert.Equal(t, raw[3].Variables, enriched[2].Variables)
}

func TestExplainTrace_WithKnowledge(t *testing.T) {
	code, raw := sumTrace()
	fake := &fakeKnowledge{
		chunks: []string{"Assignment is a statement that allows binding a name to a value for later use."},
	}
	e, err := NewStepExplainer(Config{Level: LevelBeginner, Knowledge: fake, TopK: 2})
	require.NoError(t, err)

	enriched, err := e.ExplainTrace(context.Background(), code, raw)
	require.NoError(t, err)
	require.Len(t, enriched, 3)

	// Every retained step has changes and concepts, so all retrieve.
	require.Len(t, fake.calls, 3)
	assert.Equal(t, 2, fake.calls[0].limit)
	assert.Equal(t, "sum_val = a + b", fake.calls[2].source)
	assert.Contains(t, fake.calls[2].concepts, "arithmetic")

	assert.Contains(t, enriched[0].Explanation, "This happens because")
}

func TestExplainTrace_RetrievalFailureDegrades(t *testing.T) {
	code, raw := sumTrace()
	fake := &fakeKnowledge{
		chunks:   []string{"Lists allow appending items at the end."},
		err:      errors.New("vector store unavailable"),
		failLine: "b = 3",
	}
	e, err := NewStepExplainer(Config{Level: LevelMedium, Knowledge: fake})
	require.NoError(t, err)

	enriched, err := e.ExplainTrace(context.Background(), code, raw)

	// The failing step degrades to its base segment; the trace succeeds.
	require.NoError(t, err)
	require.Len(t, enriched, 3)
	assert.Contains(t, enriched[1].Explanation, "b = 3")
	assert.NotContains(t, enriched[1].Explanation, "appending")
	assert.Contains(t, enriched[2].Explanation, "appending")
}

func TestExplainTrace_RetrievalFailureCallback(t *testing.T) {
	code, raw := sumTrace()
	fake := &fakeKnowledge{err: errors.New("vector store unavailable")}

	var degraded int
	e, err := NewStepExplainer(Config{
		Level:              LevelMedium,
		Knowledge:          fake,
		OnRetrievalFailure: func() { degraded++ },
	})
	require.NoError(t, err)

	enriched, err := e.ExplainTrace(context.Background(), code, raw)
	require.NoError(t, err)
	require.Len(t, enriched, 3)
	assert.Equal(t, 3, degraded, "every degraded step reports exactly once")
}

func TestExplainTrace_NoRetrievalWithoutChanges(t *testing.T) {
	// Second step repeats the first snapshot on a new line: no changes, so
	// retrieval must be skipped even though the line has concepts.
	code := "x = 1\nif x > 0:"
	raw := []RawStep{
		{Step: 1, Line: 1, Variables: map[string]any{"x": 1.0}},
		{Step: 2, Line: 2, Variables: map[string]any{"x": 1.0}},
	}
	fake := &fakeKnowledge{chunks: []string{"Conditionals branch execution."}}
	e, err := NewStepExplainer(Config{Level: LevelMedium, Knowledge: fake})
	require.NoError(t, err)

	enriched, err := e.ExplainTrace(context.Background(), code, raw)
	require.NoError(t, err)
	require.Len(t, enriched, 2)
	require.Len(t, fake.calls, 1, "only the changing step retrieves")
	assert.Equal(t, "x = 1", fake.calls[0].source)
}

func TestExplainTrace_FirstStepNoChanges(t *testing.T) {
	raw := []RawStep{
		{Step: 1, Line: 5, Variables: map[string]any{}},
	}
	e, err := NewStepExplainer(Config{Level: LevelMedium})
	require.NoError(t, err)

	enriched, err := e.ExplainTrace(context.Background(), "", raw)
	require.NoError(t, err)
	require.Len(t, enriched, 1)
	assert.Equal(t, "Program execution begins.", enriched[0].Explanation)
}

func TestExplainTrace_LevelsProduceDistinctText(t *testing.T) {
	code, raw := sumTrace()
	ctx := context.Background()

	outputs := make(map[Level]string)
	for _, level := range Levels() {
		e, err := NewStepExplainer(Config{Level: level})
		require.NoError(t, err)
		enriched, err := e.ExplainTrace(ctx, code, raw)
		require.NoError(t, err)
		require.Len(t, enriched, 3)
		outputs[level] = enriched[2].Explanation
	}

	assert.Contains(t, outputs[LevelBeginner], "is created with value 8")
	assert.Contains(t, outputs[LevelMedium], "sum_val = 8")
	assert.NotEqual(t, outputs[LevelBeginner], outputs[LevelInterviewReady])
}
