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
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pharmatrack/pharmatrack-backend/internal/stock/consumers"
	"github.com/pharmatrack/pharmatrack-backend/internal/stock/events"
	"github.com/pharmatrack/pharmatrack-backend/internal/stock/handler"
	"github.com/pharmatrack/pharmatrack-backend/internal/stock/repository"
	"github.com/pharmatrack/pharmatrack-backend/internal/stock/service"
	"github.com/pharmatrack/pharmatrack-backend/pkg/actor"
	"github.com/pharmatrack/pharmatrack-backend/pkg/config"
	"github.com/pharmatrack/pharmatrack-backend/pkg/database"
	"github.com/pharmatrack/pharmatrack-backend/pkg/httputil"
	"github.com/pharmatrack/pharmatrack-backend/pkg/logger"
	"github.com/pharmatrack/pharmatrack-backend/pkg/messaging"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("stock-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("stock-service", cfg.Server.Environment)
	log.Info().Msg("starting Stock Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	// Initialize event publisher
	publisher, err := events.NewStockEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Initialize repositories
	lotRepo := repository.NewLotRepository(db)
	movementRepo := repository.NewMovementRepository(db)
	stockViewRepo := repository.NewStockViewRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	productCacheRepo := repository.NewProductCacheRepository(db)

	// Initialize services
	ledgerService := service.NewLedgerService(db, lotRepo, movementRepo, stockViewRepo, publisher, log)
	aggregatorService := service.NewAggregatorService(stockViewRepo, log)
	alertService := service.NewAlertService(stockViewRepo, log)
	inventoryService := service.NewInventoryService(db, sessionRepo, lotRepo, ledgerService, publisher, log)

	// Initialize handlers
	lotHandler := handler.NewLotHandler(ledgerService, log)
	movementHandler := handler.NewMovementHandler(ledgerService, log)
	alertHandler := handler.NewAlertHandler(alertService, log)
	sessionHandler := handler.NewSessionHandler(inventoryService, log)
	dashboardHandler := handler.NewDashboardHandler(aggregatorService, log)

	// Start catalog event consumer
	catalogConsumer, err := consumers.NewCatalogEventConsumer(rmq, productCacheRepo, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create catalog event consumer")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := catalogConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start catalog event consumer")
	}

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Actor-ID", "X-Actor-Name", "X-Actor-Role"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Resolve the acting user for every request
	verifier := actor.NewVerifier(&cfg.Auth)
	r.Use(httputil.ActorMiddleware(verifier))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "stock-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// API routes
	r.Route("/api/v1/stock", func(r chi.Router) {
		// Lot routes
		r.Route("/lots", func(r chi.Router) {
			r.Get("/", lotHandler.List)
			r.Post("/", lotHandler.Create)
			r.Get("/{id}", lotHandler.Get)
			r.Post("/{id}/adjust", lotHandler.Adjust)
			r.Put("/{id}/status", lotHandler.ChangeStatus)
			r.Get("/{id}/movements", lotHandler.Movements)
		})

		// Product-scoped views
		r.Route("/products/{productId}", func(r chi.Router) {
			r.Get("/lots", lotHandler.ListByProduct)
			r.Get("/total", dashboardHandler.TotalStock)
		})

		// Movement journal
		r.Get("/movements", movementHandler.Recent)

		// Alert routes
		r.Route("/alerts", func(r chi.Router) {
			r.Get("/low-stock", alertHandler.LowStock)
			r.Get("/out-of-stock", alertHandler.OutOfStock)
			r.Get("/below-threshold", alertHandler.BelowThreshold)
			r.Get("/expiring", alertHandler.Expiring)
			r.Get("/expired", alertHandler.Expired)
		})

		// Inventory session routes
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", sessionHandler.List)
			r.Post("/", sessionHandler.Start)
			r.Get("/{id}", sessionHandler.Get)
			r.Get("/{id}/progress", sessionHandler.Progress)
			r.Post("/{id}/close", sessionHandler.Close)
			r.Post("/{id}/lines", sessionHandler.AddLine)
			r.Put("/{id}/lines/{lotId}/count", sessionHandler.RecordCount)
			r.Post("/{id}/lines/{lotId}/apply", sessionHandler.ApplyLine)
		})

		// Dashboard
		r.Get("/dashboard/stats", dashboardHandler.Stats)
		r.Get("/dashboard/products", dashboardHandler.ProductSummaries)
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Cancel context to stop consumers
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
