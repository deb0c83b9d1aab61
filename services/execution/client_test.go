// Copyright (C) 2025 StepSage AI (dev@stepsage.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package execution

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	assert.Error(t, err)

	c, err := NewClient(ClientConfig{BaseURL: "http://localhost:8000/"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", c.baseURL)
}

func TestExecute_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/execute", r.URL.Path)

		var req ExecuteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a = 5", req.Code)
		assert.Equal(t, "python", req.Language, "language defaults to python")

		json.NewEncoder(w).Encode(map[string]any{
			"output": "",
			"trace": []map[string]any{
				{"step": 1, "line": 1, "event": "line", "variables": map[string]any{"a": 5}},
			},
		})
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	result, err := c.Execute(context.Background(), ExecuteRequest{Code: "a = 5"})
	require.NoError(t, err)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, 1, result.Trace[0].Line)
	assert.Equal(t, 1, result.Steps, "steps defaults to trace length")
}

func TestExecute_ExceptionIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"output":    "",
			"exception": "ZeroDivisionError: division by zero",
			"trace": []map[string]any{
				{"step": 1, "line": 1, "event": "exception", "variables": map[string]any{}},
			},
		})
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	result, err := c.Execute(context.Background(), ExecuteRequest{Code: "1 / 0"})
	require.NoError(t, err)
	assert.Contains(t, result.Exception, "ZeroDivisionError")
	assert.Len(t, result.Trace, 1)
}

func TestExecute_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "sandbox crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Execute(context.Background(), ExecuteRequest{Code: "a = 1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestExecute_Unreachable(t *testing.T) {
	c, err := NewClient(ClientConfig{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = c.Execute(context.Background(), ExecuteRequest{Code: "a = 1"})
	assert.ErrorIs(t, err, ErrExecutionUnavailable)
}

func TestExecute_EmptyCode(t *testing.T) {
	c, err := NewClient(ClientConfig{BaseURL: "http://localhost:8000"})
	require.NoError(t, err)

	_, err = c.Execute(context.Background(), ExecuteRequest{})
	assert.Error(t, err)
}
