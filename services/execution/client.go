// Copyright (C) 2025 StepSage AI (dev@stepsage.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package execution calls the sandboxed execution collaborator that runs
// user code under an instrumented tracer and returns the raw step trace.
package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stepsage-ai/stepsage/services/explainer"
)

// ErrExecutionUnavailable is returned when the execution service cannot
// be reached.
var ErrExecutionUnavailable = errors.New("execution service is not available")

// ExecuteRequest is the payload sent to the execution service.
type ExecuteRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	Stdin    string `json:"stdin,omitempty"`
}

// ExecuteResult is the execution service's response: program output, the
// raw trace, and an optional exception description. Output and Exception
// are passed through to API responses unchanged.
type ExecuteResult struct {
	Output    string              `json:"output"`
	Trace     []explainer.RawStep `json:"trace"`
	Steps     int                 `json:"steps"`
	Exception string              `json:"exception,omitempty"`
}

// ClientConfig configures the execution client.
type ClientConfig struct {
	// BaseURL is the execution service URL (e.g., "http://localhost:8000").
	BaseURL string

	// Timeout bounds a single execution round-trip, including the
	// sandboxed run itself. Default: 30s.
	Timeout time.Duration

	// Logger for client operations. Default: slog.Default().
	Logger *slog.Logger
}

// Client calls the execution service over HTTP.
//
// Thread Safety: Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates an execution client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.New("base_url must not be empty")
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimSuffix(config.BaseURL, "/"),
		http:    &http.Client{Timeout: config.Timeout},
		logger:  config.Logger.With(slog.String("component", "execution_client")),
	}, nil
}

// Execute runs the code in the sandbox and returns its output and trace.
//
// A traced run that raised an exception is NOT an error here: the result
// carries the exception text and the partial trace up to the raise.
func (c *Client) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error) {
	if req.Code == "" {
		return nil, errors.New("code must not be empty")
	}
	if req.Language == "" {
		req.Language = "python"
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal execute request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build execute request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecutionUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read execute response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("execution service returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result ExecuteResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode execute response: %w", err)
	}
	if result.Steps == 0 {
		result.Steps = len(result.Trace)
	}

	c.logger.Info("executed code",
		"language", req.Language,
		"trace_steps", len(result.Trace),
		"has_exception", result.Exception != "",
		"duration_ms", time.Since(start).Milliseconds())
	return &result, nil
}
