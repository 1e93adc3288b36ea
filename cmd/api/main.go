// Package main is the entry point for the API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/sinistra/internal/api"
	"github.com/onnwee/sinistra/internal/audit"
	"github.com/onnwee/sinistra/internal/auth"
	"github.com/onnwee/sinistra/internal/config"
	"github.com/onnwee/sinistra/internal/db"
	"github.com/onnwee/sinistra/internal/document"
	"github.com/onnwee/sinistra/internal/dossier"
	"github.com/onnwee/sinistra/internal/health"
	"github.com/onnwee/sinistra/internal/middleware"
	"github.com/onnwee/sinistra/internal/notification"
	"github.com/onnwee/sinistra/internal/tracing"
	"github.com/onnwee/sinistra/internal/upload"
	"github.com/onnwee/sinistra/internal/user"
)

const serviceName = "sinistra-api"

func main() {
	help := flag.Bool("help", false, "display help message")
	configFile := flag.String("config", "", "path to YAML config file (optional)")
	flag.Parse()

	if *help {
		fmt.Println("Sinistra API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	ctx := context.Background()

	// Tracing
	tracerProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  serviceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingOTLPEndpoint,
		SamplingRate: cfg.TracingSamplingRate,
		InsecureMode: cfg.Env != "production",
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Database
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	// Repositories
	auditRepo := audit.NewPostgresRepository(conn)
	_ = notification.NewPostgresRepository(conn) // no notification handlers are wired into the router yet
	userRepo := user.NewPostgresRepository(conn)
	dossierRepo := dossier.NewPostgresRepository(conn, logger)
	documentRepo := document.NewPostgresRepository(conn, logger)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register http metrics", "error", err)
		os.Exit(1)
	}
	dossierMetrics := dossier.NewMetrics()
	if err := dossierMetrics.Register(registry); err != nil {
		logger.Error("failed to register dossier metrics", "error", err)
		os.Exit(1)
	}

	// Redis (optional). Rate limiting falls back to in-memory when absent.
	var rateLimitStore middleware.RateLimitStore
	var redisChecker api.HealthChecker
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid redis URL", "error", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()
		rateLimitStore = middleware.NewRedisRateLimitStore(redisClient, httpMetrics)
		redisChecker = health.NewRedisChecker(redisClient)
	} else {
		store := middleware.NewInMemoryRateLimitStore()
		go func() {
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				store.Cleanup()
			}
		}()
		rateLimitStore = store
	}

	// Auth
	jwtService := auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret)

	// Object storage (optional)
	var uploadService *upload.Service
	if cfg.StorageConfigured() {
		uploadService, err = upload.NewService(upload.ServiceConfig{
			BucketName:      cfg.StorageBucketName,
			AccessKeyID:     cfg.StorageAccessKeyID,
			SecretAccessKey: cfg.StorageSecretAccessKey,
			Endpoint:        cfg.StorageEndpoint,
			MaxSizeMB:       cfg.MaxUploadSizeMB,
		})
		if err != nil {
			logger.Error("failed to initialize upload service", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("object storage not configured, presigned uploads disabled")
	}

	// Services
	dossierService := dossier.NewService(dossierRepo, documentRepo, dossierMetrics)
	caseSource := api.NewCaseSourceAdapter(dossierRepo)
	documentService := document.NewService(documentRepo, caseSource)

	// Handlers
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		DBChecker:      health.NewDBChecker(conn),
		RedisChecker:   redisChecker,
		MetricsEnabled: true,
	})

	router := api.NewRouter(api.RouterConfig{
		Auth:           api.NewAuthHandlers(userRepo, jwtService, auditRepo),
		Dossiers:       api.NewDossierHandlers(dossierService),
		Status:         api.NewStatusHandlers(dossierService),
		Documents:      api.NewDocumentHandlers(documentService),
		Audits:         api.NewAuditHandlers(auditRepo),
		Uploads:        api.NewUploadHandlers(uploadService, caseSource),
		Health:         healthHandlers,
		TokenValidator: jwtService,
		RateLimitStore: rateLimitStore,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	// Middleware chain, outermost first:
	// RequestID -> Tracing -> Metrics -> Logging -> CORS -> global RateLimiter -> routes
	var handler http.Handler = router
	handler = middleware.RateLimiter(rateLimitStore, middleware.DefaultGlobalLimit(), middleware.UserKeyFunc())(handler)
	if cfg.CORSAllowedOrigins != "" {
		handler = middleware.CORS(middleware.CORSConfig{
			AllowedOrigins:   strings.Split(cfg.CORSAllowedOrigins, ","),
			AllowCredentials: true,
			MaxAge:           300,
		})(handler)
	}
	handler = middleware.Logging(logger)(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	if cfg.TracingEnabled {
		handler = middleware.Tracing(serviceName)(handler)
	}
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		logger.Error("tracer shutdown failed", "error", err)
	}

	logger.Info("server stopped")
}
