// Copyright (C) 2025 StepSage AI (dev@stepsage.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepsage-ai/stepsage/services/execution"
	"github.com/stepsage-ai/stepsage/services/llm"
	"github.com/stepsage-ai/stepsage/services/orchestrator/datatypes"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// staticKnowledge returns fixed chunks for every step.
type staticKnowledge struct {
	chunks []string
	err    error
}

func (s *staticKnowledge) KnowledgeForStep(context.Context, []string, string, int) ([]string, error) {
	return s.chunks, s.err
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func explainRouter(exec *execution.Client, ks *staticKnowledge) *gin.Engine {
	router := gin.New()
	if ks != nil {
		router.POST("/v1/explain/trace", ExplainTrace(exec, ks))
	} else {
		router.POST("/v1/explain/trace", ExplainTrace(exec, nil))
	}
	return router
}

func TestExplainTrace_WithProvidedTrace(t *testing.T) {
	router := explainRouter(nil, nil)

	w := postJSON(t, router, "/v1/explain/trace", map[string]any{
		"code":  "a = 5\nb = 3\nsum_val = a + b",
		"level": "medium",
		"trace": []map[string]any{
			{"step": 1, "line": 1, "variables": map[string]any{"a": 5}},
			{"step": 2, "line": 2, "variables": map[string]any{"a": 5, "b": 3}},
			{"step": 3, "line": 3, "variables": map[string]any{"a": 5, "b": 3, "sum_val": 8}},
		},
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp datatypes.ExplainTraceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "medium", resp.Level)
	require.Len(t, resp.Steps, 3)
	assert.Contains(t, resp.Steps[2].Explanation, "sum_val")
}

func TestExplainTrace_InvalidRequests(t *testing.T) {
	router := explainRouter(nil, nil)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing code", map[string]any{"level": "medium"}},
		{"unknown level", map[string]any{"code": "x = 1", "level": "expert",
			"trace": []map[string]any{{"step": 1, "line": 1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, router, "/v1/explain/trace", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestExplainTrace_NoTraceNoExecution(t *testing.T) {
	router := explainRouter(nil, nil)

	w := postJSON(t, router, "/v1/explain/trace", map[string]any{"code": "x = 1"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestExplainTrace_ExecutesWhenNoTraceProvided(t *testing.T) {
	execSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"output": "8\n",
			"trace": []map[string]any{
				{"step": 1, "line": 1, "variables": map[string]any{"x": 8}},
			},
		})
	}))
	defer execSrv.Close()

	exec, err := execution.NewClient(execution.ClientConfig{BaseURL: execSrv.URL})
	require.NoError(t, err)
	router := explainRouter(exec, nil)

	w := postJSON(t, router, "/v1/explain/trace", map[string]any{"code": "x = 8\nprint(x)"})

	require.Equal(t, http.StatusOK, w.Code)
	var resp datatypes.ExplainTraceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "8\n", resp.Output, "program output passes through unchanged")
	require.Len(t, resp.Steps, 1)
}

func TestExplainTrace_KnowledgeFailureStillSucceeds(t *testing.T) {
	ks := &staticKnowledge{err: errors.New("store down")}
	router := explainRouter(nil, ks)

	w := postJSON(t, router, "/v1/explain/trace", map[string]any{
		"code":  "x = 1",
		"trace": []map[string]any{{"step": 1, "line": 1, "variables": map[string]any{"x": 1}}},
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp datatypes.ExplainTraceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Steps, 1)
	assert.NotEmpty(t, resp.Steps[0].Explanation)
}

// scriptedLLM implements llm.LLMClient for structure tests.
type scriptedLLM struct{ response string }

func (s *scriptedLLM) Generate(context.Context, string, llm.GenerationParams) (string, error) {
	return s.response, nil
}

func TestExplainStructure_Disabled(t *testing.T) {
	router := gin.New()
	router.POST("/v1/explain/structure", ExplainStructure(nil, nil))

	w := postJSON(t, router, "/v1/explain/structure", map[string]any{"code": "x = 1"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestExplainStructure_WithTrace(t *testing.T) {
	analyzer := llm.NewStructureAnalyzer(&scriptedLLM{
		response: `{"structures": [{"name": "x", "type": "int", "description": "counter"}], "summary": "Counts."}`,
	}, nil)
	router := gin.New()
	router.POST("/v1/explain/structure", ExplainStructure(nil, analyzer))

	w := postJSON(t, router, "/v1/explain/structure", map[string]any{
		"code":  "x = 1",
		"trace": []map[string]any{{"step": 1, "line": 1, "variables": map[string]any{"x": 1}}},
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp datatypes.ExplainStructureResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Analysis)
	assert.Equal(t, "Counts.", resp.Analysis.Summary)
}

func TestHealth(t *testing.T) {
	router := gin.New()
	router.GET("/health", Health(nil, nil))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp datatypes.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "disabled", resp.Knowledge)
	assert.Equal(t, "disabled", resp.LLM)
}
