// Copyright (C) 2025 StepSage AI (dev@stepsage.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package knowledge stores and retrieves the curated programming-concept
// passages that ground step explanations.
//
// The package wraps a Weaviate instance: ingestion chunks documents and
// batches them into the KnowledgeChunk class; retrieval runs semantic
// nearText queries filtered by concept. All retrieval failures surface as
// RetrievalError so callers can degrade instead of aborting.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrStoreUnavailable is returned when the vector store is not reachable.
	ErrStoreUnavailable = errors.New("knowledge store is not available")

	// ErrClientClosed is returned when operations are called on a closed client.
	ErrClientClosed = errors.New("knowledge client is closed")
)

// RetrievalError wraps any failure while querying the knowledge store.
// Callers treat it as recoverable: an explanation degrades to its base
// segment rather than failing the trace.
type RetrievalError struct {
	Op  string
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("knowledge retrieval %s: %v", e.Op, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// IsRetrievalError reports whether err is (or wraps) a RetrievalError.
func IsRetrievalError(err error) bool {
	var re *RetrievalError
	return errors.As(err, &re)
}

// =============================================================================
// Client Configuration
// =============================================================================

// ClientConfig configures the knowledge store client.
type ClientConfig struct {
	// URL is the Weaviate server URL (e.g., "http://localhost:8080").
	URL string

	// RetryAttempts is the number of retry attempts for failed requests.
	// Default: 3
	RetryAttempts int

	// RetryBackoff is the initial backoff duration between retries.
	// Default: 100ms
	RetryBackoff time.Duration

	// MaxRetryBackoff caps the exponential backoff.
	// Default: 5s
	MaxRetryBackoff time.Duration

	// RetryJitter adds randomness to backoff (0.0-1.0).
	// Default: 0.25
	RetryJitter float64

	// ReadyTimeout bounds the startup readiness wait.
	// Default: 30s
	ReadyTimeout time.Duration

	// Logger for client operations.
	// Default: slog.Default()
	Logger *slog.Logger
}

// Validate checks the configuration.
func (c *ClientConfig) Validate() error {
	if c.URL == "" {
		return errors.New("url must not be empty")
	}
	if c.RetryAttempts < 0 {
		return errors.New("retry_attempts must be non-negative")
	}
	if c.RetryJitter < 0 || c.RetryJitter > 1 {
		return errors.New("retry_jitter must be between 0 and 1")
	}
	return nil
}

// applyDefaults fills in zero values with defaults.
func (c *ClientConfig) applyDefaults() {
	if c.RetryAttempts == 0 {
		c.RetryAttempts = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = 100 * time.Millisecond
	}
	if c.MaxRetryBackoff == 0 {
		c.MaxRetryBackoff = 5 * time.Second
	}
	if c.RetryJitter == 0 {
		c.RetryJitter = 0.25
	}
	if c.ReadyTimeout == 0 {
		c.ReadyTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// =============================================================================
// Client
// =============================================================================

// Client wraps the Weaviate client with retry, jittered backoff, and a
// startup readiness gate.
//
// Thread Safety: Safe for concurrent use from multiple goroutines.
type Client struct {
	client *weaviate.Client
	config ClientConfig
	logger *slog.Logger
	closed atomic.Bool
}

// NewClient creates a knowledge store client and blocks until the store
// reports ready or the configured timeout elapses.
func NewClient(ctx context.Context, config ClientConfig) (*Client, error) {
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg := weaviate.Config{Host: config.URL, Scheme: "http"}
	switch {
	case strings.HasPrefix(config.URL, "https://"):
		cfg.Scheme = "https"
		cfg.Host = strings.TrimPrefix(config.URL, "https://")
	case strings.HasPrefix(config.URL, "http://"):
		cfg.Host = strings.TrimPrefix(config.URL, "http://")
	}

	wv, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}

	c := &Client{
		client: wv,
		config: config,
		logger: config.Logger.With(slog.String("component", "knowledge_client")),
	}

	if err := c.WaitForReady(ctx, config.ReadyTimeout); err != nil {
		return nil, err
	}

	c.logger.Info("knowledge store connected", slog.String("url", config.URL))
	return c, nil
}

// Weaviate returns the underlying Weaviate client for direct operations.
func (c *Client) Weaviate() *weaviate.Client { return c.client }

// WaitForReady polls the store's readiness endpoint until it responds or
// the timeout elapses.
func (c *Client) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		if ready, err := c.client.Misc().ReadyChecker().Do(ctx); err == nil && ready {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("store not ready within %v: %w", timeout, ErrStoreUnavailable)
		case <-ticker.C:
		}
	}
}

// Execute runs fn with retry and jittered exponential backoff. Only
// network-class errors are retried; application errors fail immediately.
func (c *Client) Execute(ctx context.Context, fn func() error) error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			backoff := c.backoff(attempt)
			c.logger.Debug("retrying store operation",
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			break
		}
	}
	return lastErr
}

// Close marks the client closed. Subsequent Execute calls fail with
// ErrClientClosed.
func (c *Client) Close() error {
	c.closed.Store(true)
	return nil
}

// backoff returns the exponential backoff for an attempt, jittered by
// the configured fraction and capped at MaxRetryBackoff.
func (c *Client) backoff(attempt int) time.Duration {
	backoff := c.config.RetryBackoff * time.Duration(1<<attempt)
	if backoff > c.config.MaxRetryBackoff {
		backoff = c.config.MaxRetryBackoff
	}

	jitterRange := float64(backoff) * c.config.RetryJitter
	jitter := (rand.Float64()*2 - 1) * jitterRange
	backoff = time.Duration(float64(backoff) + jitter)
	if backoff < 0 {
		backoff = c.config.RetryBackoff
	}
	return backoff
}

// isRetryable reports whether an error class is worth retrying.
func isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
