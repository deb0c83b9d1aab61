// Copyright (C) 2025 StepSage AI (dev@stepsage.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package orchestrator assembles and runs the StepSage HTTP service.
//
// It coordinates the explanation pipeline's collaborators: the knowledge
// store (Weaviate), the sandboxed execution service, the optional LLM
// backend for structural analysis, and observability infrastructure
// (OpenTelemetry tracing, Prometheus metrics).
//
// # Usage
//
//	cfg := orchestrator.Config{Port: 8080}
//	svc, err := orchestrator.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/stepsage-ai/stepsage/services/execution"
	"github.com/stepsage-ai/stepsage/services/knowledge"
	"github.com/stepsage-ai/stepsage/services/llm"
	"github.com/stepsage-ai/stepsage/services/orchestrator/observability"
	"github.com/stepsage-ai/stepsage/services/orchestrator/routes"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service is the orchestrator lifecycle contract.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and
// should only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing. Callers must
	// not modify routes after construction.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds orchestrator configuration. All fields are optional; zero
// values use defaults, and an empty URL disables that collaborator.
type Config struct {
	// Port is the HTTP server port. Default: 8080.
	Port int

	// WeaviateURL is the knowledge store URL. Empty disables retrieval;
	// explanations then consist of base segments only.
	WeaviateURL string

	// ExecutionURL is the sandboxed execution service URL. Empty
	// disables on-demand execution; requests must carry a trace.
	ExecutionURL string

	// LLMBackend selects the analysis backend. Valid: "openai", "none".
	// Default: "none".
	LLMBackend string

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "localhost:4317".
	OTelEndpoint string

	// DisableMetrics turns off Prometheus registration and the /metrics
	// endpoint. Metrics are on by default.
	DisableMetrics bool

	// GinMode sets the Gin framework mode ("debug", "release", "test").
	GinMode string
}

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = "none"
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "localhost:4317"
	}
	return cfg
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use. All fields are
// read-only after New() returns.
type service struct {
	config        Config
	router        *gin.Engine
	store         *knowledge.Client
	retriever     *knowledge.Retriever
	ingestor      *knowledge.Ingestor
	stepRetriever *knowledge.StepRetriever
	execClient    *execution.Client
	analyzer      *llm.StructureAnalyzer
	tracerCleanup func(context.Context)
}

// New creates an orchestrator Service.
//
// # Description
//
// Initializes tracing, metrics, and every configured collaborator. A
// missing knowledge store or execution service is not fatal: the
// corresponding routes are disabled or degrade, matching the pipeline's
// degradation rules.
//
// # Inputs
//
//	cfg - Service configuration. Zero values use defaults.
//
// # Outputs
//
//	Service - Ready-to-run service.
//	error - Non-nil only for failures that leave nothing useful to run.
func New(cfg Config) (Service, error) {
	s := &service{config: applyConfigDefaults(cfg)}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	if !s.config.DisableMetrics {
		observability.InitMetrics()
		slog.Info("initialized Prometheus metrics")
	}

	if err := s.initKnowledge(); err != nil {
		slog.Warn("knowledge store initialization failed, explanations will use base segments only",
			"error", err)
	}

	if err := s.initExecution(); err != nil {
		slog.Warn("execution client initialization failed, requests must carry a trace",
			"error", err)
	}

	if err := s.initLLM(); err != nil {
		slog.Warn("LLM initialization failed, structural analysis disabled",
			"error", err)
	}

	s.initRouter()
	return s, nil
}

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("starting stepsage server", "port", s.config.Port)
	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// initTracer sets up the OTLP trace exporter. Uses an insecure gRPC
// connection, appropriate for internal networks.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("stepsage")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(traceExporter)))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}
	return cleanup, nil
}

// initKnowledge connects the knowledge store and builds the retrieval
// stack. Returns nil without connecting when no URL is configured.
func (s *service) initKnowledge() error {
	if s.config.WeaviateURL == "" {
		slog.Info("knowledge store not configured")
		return nil
	}

	ctx := context.Background()
	store, err := knowledge.NewClient(ctx, knowledge.ClientConfig{URL: s.config.WeaviateURL})
	if err != nil {
		return err
	}
	if err := knowledge.EnsureSchema(ctx, store); err != nil {
		store.Close()
		return err
	}

	retriever, err := knowledge.NewRetriever(store, knowledge.RetrieverConfig{})
	if err != nil {
		store.Close()
		return err
	}
	stepRetriever, err := knowledge.NewStepRetriever(retriever, nil)
	if err != nil {
		store.Close()
		return err
	}
	ingestor, err := knowledge.NewIngestor(store, nil)
	if err != nil {
		store.Close()
		return err
	}

	s.store = store
	s.retriever = retriever
	s.stepRetriever = stepRetriever
	s.ingestor = ingestor
	return nil
}

// initExecution creates the execution client when configured.
func (s *service) initExecution() error {
	if s.config.ExecutionURL == "" {
		slog.Info("execution service not configured")
		return nil
	}
	client, err := execution.NewClient(execution.ClientConfig{BaseURL: s.config.ExecutionURL})
	if err != nil {
		return err
	}
	s.execClient = client
	return nil
}

// initLLM creates the structural-analysis backend when configured.
func (s *service) initLLM() error {
	switch s.config.LLMBackend {
	case "none", "":
		slog.Info("structural analysis disabled")
		return nil
	case "openai":
		client, err := llm.NewOpenAIClient()
		if err != nil {
			return err
		}
		s.analyzer = llm.NewStructureAnalyzer(client, nil)
		slog.Info("using OpenAI analysis backend")
		return nil
	default:
		return fmt.Errorf("unknown LLM backend: %q", s.config.LLMBackend)
	}
}

// initRouter creates the Gin engine, applies middleware, and registers
// routes against whatever collaborators came up.
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("stepsage"))

	deps := routes.Deps{
		Store:         s.store,
		Retriever:     s.retriever,
		Ingestor:      s.ingestor,
		Execution:     s.execClient,
		Analyzer:      s.analyzer,
		EnableMetrics: !s.config.DisableMetrics,
	}
	if s.stepRetriever != nil {
		deps.Knowledge = s.stepRetriever
	}
	routes.SetupRoutes(s.router, deps)
}

// cleanup releases resources on Run() exit or failed construction.
func (s *service) cleanup() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("knowledge store close error", "error", err)
		}
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
