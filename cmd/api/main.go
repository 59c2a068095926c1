// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dealflow-ai/qualification-platform/internal/config"
	"github.com/dealflow-ai/qualification-platform/internal/conversation"
	"github.com/dealflow-ai/qualification-platform/internal/crm"
	"github.com/dealflow-ai/qualification-platform/internal/events"
	"github.com/dealflow-ai/qualification-platform/internal/extract"
	"github.com/dealflow-ai/qualification-platform/internal/handler"
	"github.com/dealflow-ai/qualification-platform/internal/llm"
	"github.com/dealflow-ai/qualification-platform/internal/middleware"
	"github.com/dealflow-ai/qualification-platform/internal/session"
	"github.com/dealflow-ai/qualification-platform/pkg/logger"
	"github.com/dealflow-ai/qualification-platform/pkg/tracing"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	// Initialize tracing if enabled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "qualification-platform", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Connect to NATS
	natsClient, err := events.Connect(ctx, events.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	if err != nil {
		log.Error("failed to connect to NATS", zap.Error(err))
		os.Exit(1)
	}
	defer natsClient.Close()

	// Ensure JetStream stream exists
	streamManager := events.NewStreamManager(natsClient)
	if err := streamManager.EnsureStream(ctx); err != nil {
		log.Error("failed to ensure stream", zap.Error(err))
		os.Exit(1)
	}

	// Initialize LLM client
	var llmClient llm.Client
	if cfg.AnthropicAPIKey != "" {
		llmClient, err = llm.NewAnthropicClient(cfg.AnthropicAPIKey)
	} else if cfg.OpenAIAPIKey != "" {
		llmClient, err = llm.NewOpenAIClient(cfg.OpenAIAPIKey)
	} else {
		log.Error("no LLM API key configured")
		os.Exit(1)
	}
	if err != nil {
		log.Error("failed to create LLM client", zap.Error(err))
		os.Exit(1)
	}

	// Initialize session store
	var store session.Store
	if cfg.SessionStore == "bolt" {
		store, err = session.NewBoltStore(cfg.SessionBoltPath, cfg.SessionTTL)
		if err != nil {
			log.Error("failed to open session store", zap.Error(err))
			os.Exit(1)
		}
	} else {
		store = session.NewMemoryStore(cfg.SessionTTL)
	}
	defer store.Close()

	// Initialize CRM client
	var crmClient crm.Client
	if cfg.IsSalesforceConfigured() {
		crmClient = crm.NewSalesforce(crm.SalesforceConfig{
			InstanceURL:  cfg.SalesforceInstanceURL,
			ClientID:     cfg.SalesforceClientID,
			ClientSecret: cfg.SalesforceClientSecret,
			RefreshToken: cfg.SalesforceRefreshToken,
			Timeout:      cfg.CRMTimeout,
		}, log)
	} else {
		log.Warn("Salesforce not configured, running in preview mode")
		crmClient = crm.NewPreview(log)
	}

	// Initialize pipeline
	extractor := extract.New(llmClient, cfg.ExtractionModel, cfg.ExtractTimeout, cfg.ExtractRetries, log)
	writer := crm.NewWriter(crmClient, log)
	manager := conversation.NewManager(
		store,
		extractor,
		writer,
		streamManager,
		cfg.SessionIdleTimeout,
		cfg.SessionGracePeriod,
		log,
	)
	manager.StartSweeper(ctx, time.Minute)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(natsClient)
	transcriptHandler := handler.NewTranscriptHandler(manager, log)
	sessionHandler := handler.NewSessionHandler(manager, store, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.With(middleware.RequireScope(middleware.ScopeTranscriptsWrite)).
			Post("/transcripts", transcriptHandler.Ingest)

		r.Route("/sessions/{key}", func(r chi.Router) {
			r.With(middleware.RequireScope(middleware.ScopeSessionsRead)).
				Get("/", sessionHandler.Get)
			r.With(middleware.RequireScope(middleware.ScopeTranscriptsWrite)).
				Post("/messages", sessionHandler.SendMessage)
		})
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
