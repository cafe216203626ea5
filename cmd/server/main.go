package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/floresloli/pedidos-factura-service/api"
	"github.com/floresloli/pedidos-factura-service/internal/ai"
	"github.com/floresloli/pedidos-factura-service/internal/auth"
	"github.com/floresloli/pedidos-factura-service/internal/db"
	"github.com/floresloli/pedidos-factura-service/internal/extract"
	"github.com/floresloli/pedidos-factura-service/internal/logger"
	"github.com/floresloli/pedidos-factura-service/internal/models"
	"github.com/floresloli/pedidos-factura-service/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	hashPassword := flag.String("hash-password", "", "print the bcrypt hash of a staff password and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := auth.HashPassword(*hashPassword)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	// Load configuration
	config, err := models.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(config.Logging.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	// Initialize database connection pool
	if err := db.Init(ctx, config.Database.URL); err != nil {
		log.Warn("database not available, running without persistence", "error", err)
	} else {
		defer db.Close()
		log.Info("database connection pool initialized")
	}

	// Initialize document storage
	store, err := openStore(ctx, config)
	if err != nil {
		log.Warn("invoice storage not available, PDFs will not be stored", "backend", config.Storage.Backend, "error", err)
	} else {
		log.Info("invoice storage initialized", "backend", config.Storage.Backend)
	}

	extractor := extract.New(extract.Options{
		TaxRate: decimal.NewFromFloat(config.Extraction.TaxRate),
		Strict:  config.Extraction.StrictMode(),
	})

	handler := api.NewHandler(config, extractor, store, log)

	// Initialize AI engine
	provider, err := ai.NewProvider(ctx, config.AI)
	switch {
	case err != nil:
		log.Warn("AI engine not available", "provider", config.AI.DefaultProvider, "error", err)
	case provider == nil:
		log.Info("AI engine disabled")
	default:
		if closer, ok := provider.(io.Closer); ok {
			defer closer.Close()
		}
		handler.WithAI(ai.NewOrderExtractor(provider, extractor))
		log.Info("AI engine initialized", "provider", provider.Name(), "fallback_on_empty", config.AI.FallbackOnEmpty)
	}

	router := handler.SetupRoutes()

	var inner http.Handler = router
	if config.Auth.Enabled {
		if err := auth.Init(config.Auth.JWTSecret, config.Auth.TokenTTL); err != nil {
			log.Fatal("failed to initialize auth", "error", err)
		}
		router.HandleFunc("/api/login", auth.LoginHandler).Methods("POST")
		// skips /health, /info, /ejemplos and /api/login
		inner = auth.JWTMiddleware(router)
		log.Info("JWT authentication enabled")
	}
	root := handler.RequestLogger(inner)

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	log.Info("starting order invoicing service",
		"version", api.Version,
		"addr", addr,
		"tax_rate", config.Extraction.TaxRate,
		"strict", config.Extraction.StrictMode(),
		"database", db.Available(),
		"storage", store != nil,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", "error", err)
		}
	case sig := <-stop:
		log.Info("shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
	}
}

// openStore builds the configured storage backend
func openStore(ctx context.Context, config *models.Config) (storage.Store, error) {
	switch strings.ToLower(config.Storage.Backend) {
	case "minio":
		s, err := storage.NewMinioStore(ctx, config.Storage.Minio)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		s, err := storage.NewLocalStore(config.Storage.Dir)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}
