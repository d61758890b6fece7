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

	"github.com/joho/godotenv"

	"github.com/shomere/ICR-Projects/internal/cache"
	"github.com/shomere/ICR-Projects/internal/catalog"
	"github.com/shomere/ICR-Projects/internal/config"
	"github.com/shomere/ICR-Projects/internal/handlers"
	"github.com/shomere/ICR-Projects/internal/metrics"
	"github.com/shomere/ICR-Projects/internal/routes"
	"github.com/shomere/ICR-Projects/internal/supabase"
)

func main() {
	// 0. --- Load Environment Variables (.env) ---
	if err := godotenv.Load(); err != nil {
		log.Println("WARNING: Could not find or load .env file. Relying on system environment variables.")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	// 1. --- Remote Data Service ---
	m := metrics.New()
	client, err := supabase.New(supabase.Config{
		URL:      cfg.SupabaseURL,
		AnonKey:  cfg.SupabaseAnonKey,
		Timeout:  cfg.RequestTimeout,
		Observer: m.ObserveRemote,
	})
	if err != nil {
		log.Fatalf("Failed to configure data service client: %v", err)
	}

	// 2. --- Catalog Cache (optional) ---
	var productCache catalog.Cache
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedisClient(context.Background(), cfg.RedisAddr)
		if err != nil {
			logger.Warn("Catalog cache unavailable, serving products uncached", "error", err)
		} else {
			defer rc.Close()
			productCache = rc
		}
	}

	// --- Application Setup ---
	app := &handlers.Handlers{
		Supabase: client,
		Catalog:  catalog.New(client, productCache, cfg.CatalogCacheTTL, logger),
		Metrics:  m,
		Logger:   logger,
		Bucket:   cfg.StorageBucket,
	}

	var secret []byte
	if cfg.JWTSecret != "" {
		secret = []byte(cfg.JWTSecret)
	}

	// --- Router Setup ---
	router := routes.SetupRouter(app, routes.Options{
		CORSOrigin:           cfg.CORSOrigin,
		JWTSecret:            secret,
		ContactRatePerMinute: cfg.ContactRatePerMinute,
	})

	// --- Start Server with Graceful Shutdown ---
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("Starting portal API server", "addr", server.Addr, "endpoint", cfg.SupabaseURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed to listen and serve", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	logger.Info("Shutting down server gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
	}
}
