package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cpq-engine-api/internal/bootstrap"
	"cpq-engine-api/internal/config"
	"cpq-engine-api/internal/handler"
	"cpq-engine-api/internal/router"
)

func main() {
	cfg := config.Load()
	if err := cfg.ValidateEnvironment(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger, err := bootstrap.NewLogger(cfg)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	app, err := bootstrap.Wire(cfg, logger)
	if err != nil {
		log.Fatalf("failed to connect to MongoDB: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.Close(ctx); err != nil {
			log.Printf("error closing Mongo client: %v", err)
		}
	}()

	healthHandler := handler.NewHealthHandler()
	authHandler := handler.NewAuthHandler(app.ActorAuth)
	quoteHandler := handler.NewQuoteHandler(app.QuoteService)

	r := router.NewRouter(healthHandler, authHandler, quoteHandler, app.AuthMiddleware)

	srv := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.AppPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	log.Println("Server stopped gracefully")
}
