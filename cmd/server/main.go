package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"weather-alerts/internal/bootstrap"
	"weather-alerts/internal/config"
	"weather-alerts/internal/handlers"
	"weather-alerts/internal/services"
	"weather-alerts/pkg/logging"
)

func main() {
	rt, err := bootstrap.Load("weather-api", config.RoleServer)
	if err != nil {
		bootstrap.ExitConfigError(err)
	}
	cfg := rt.Config
	logger := rt.Logger

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting weather alerts API server", logging.Fields{
		"version":     bootstrap.Version,
		"server_host": cfg.Server.Host,
		"server_port": cfg.Server.Port,
		"backend":     cfg.Store.Backend,
	})

	store, err := rt.OpenStore(ctx)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to open store", logging.Fields{
			"backend": cfg.Store.Backend,
		}, err)
	}
	defer store.Close()

	// Initialize services
	recordsService := services.NewRecordsService(store, cfg.Store.Timeout, logger)
	alertService, err := rt.NewAlertService(store, false)
	if err != nil {
		bootstrap.ExitConfigError(err)
	}

	// Initialize handlers
	weatherHandler := handlers.NewWeatherHandler(recordsService, alertService, store, logger, rt.Metrics)

	// Setup router
	router := mux.NewRouter()
	weatherHandler.RegisterRoutes(router)
	router.Handle("/metrics", promhttp.Handler())

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
