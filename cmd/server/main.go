package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eviction_intake_go/config"
	"eviction_intake_go/db"
	"eviction_intake_go/handlers"
	"eviction_intake_go/models"
	"eviction_intake_go/services"
	"eviction_intake_go/services/contentstore"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
)

func main() {
	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize database
	if err := db.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := db.AutoMigrate(&models.CaseSubmission{}, &models.SyncOutcome{}, &models.AuditLog{}); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Track repeated credential failures
	services.InitSecurityMonitor(cfg, db.DB)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Remote store
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	store, err := contentstore.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	if err := store.Provision(ctx); err != nil {
		if cfg.IsProduction() {
			log.Fatalf("Failed to provision store: %v", err)
		}
		log.Printf("[WARNING] Store provisioning failed: %v", err)
	}

	var renderer services.DocumentRenderer = services.PlaceholderRenderer{}
	if cfg.RenderPDF {
		renderer = services.NewChromePDFRenderer(cfg.ChromePath)
	}

	syncer := services.NewCaseSynchronizer(store, renderer, services.SyncConfig{
		IndexAttempts: cfg.IndexRetryAttempts,
		IndexBackoff:  cfg.IndexRetryBase,
		Parallel:      cfg.SyncParallel,
	})

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(echomiddleware.RequestLogger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization, "X-Signature-256"},
	}))
	e.Use(echomiddleware.BodyLimit("25M"))

	handlers.RegisterRoutes(e, cfg, syncer)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	// Start server
	log.Printf("Server starting on port %s (store: %s)", cfg.ServerPort, store.Name())
	if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Println("Server stopped")
}
