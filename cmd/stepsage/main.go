// Copyright (C) 2025 StepSage AI (dev@stepsage.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command stepsage starts the StepSage explanation HTTP server.
//
// It reads configuration from environment variables and starts the server.
//
// # Environment Variables
//
//   - STEPSAGE_PORT: HTTP server port (default: 8080)
//   - WEAVIATE_SERVICE_URL: knowledge store URL (optional)
//   - EXECUTION_SERVICE_URL: sandboxed execution service URL (optional)
//   - LLM_BACKEND_TYPE: analysis backend - openai, none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: localhost:4317)
//   - STEPSAGE_LOG_LEVEL: debug, info, warn, error (default: info)
//   - STEPSAGE_LOG_DIR: enables JSON file logging when set
//   - STEPSAGE_DISABLE_METRICS: set to "true" to turn off Prometheus metrics
//
// # Usage
//
//	go build -o stepsage ./cmd/stepsage
//	./stepsage
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/stepsage-ai/stepsage/pkg/logging"
	"github.com/stepsage-ai/stepsage/services/orchestrator"
)

func main() {
	logger := logging.New(logging.Config{
		Level:   logLevelFromEnv(),
		LogDir:  os.Getenv("STEPSAGE_LOG_DIR"),
		Service: "orchestrator",
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	cfg := orchestrator.Config{
		Port:           getEnvInt("STEPSAGE_PORT", 8080),
		WeaviateURL:    os.Getenv("WEAVIATE_SERVICE_URL"),
		ExecutionURL:   os.Getenv("EXECUTION_SERVICE_URL"),
		LLMBackend:     getEnvString("LLM_BACKEND_TYPE", "none"),
		OTelEndpoint:   getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		DisableMetrics: os.Getenv("STEPSAGE_DISABLE_METRICS") == "true",
	}

	slog.Info("starting stepsage",
		"port", cfg.Port,
		"weaviate_url", cfg.WeaviateURL,
		"execution_url", cfg.ExecutionURL,
		"llm_backend", cfg.LLMBackend,
	)

	svc, err := orchestrator.New(cfg)
	if err != nil {
		log.Fatalf("failed to create service: %v", err)
	}
	if err := svc.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// logLevelFromEnv maps STEPSAGE_LOG_LEVEL to a logging level.
func logLevelFromEnv() logging.Level {
	switch getEnvString("STEPSAGE_LOG_LEVEL", "info") {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
