// reminderd - deferred permission-decision reminder daemon
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/safedrive/reminderd/internal/api"
	"github.com/safedrive/reminderd/internal/config"
	"github.com/safedrive/reminderd/internal/middleware"
	"github.com/safedrive/reminderd/internal/notify"
	"github.com/safedrive/reminderd/internal/restriction"
	"github.com/safedrive/reminderd/internal/store"
	"github.com/safedrive/reminderd/internal/unit"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting reminderd", "port", cfg.Port)

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize label registry", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close label registry", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Label registry health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Label registry connected")

	// Generate VAPID keys when none are configured so push delivery works
	// out of the box; log the public key so it can be pinned in .env.
	pushCfg := cfg.Push
	if pushCfg.VAPIDPublicKey == "" || pushCfg.VAPIDPrivateKey == "" {
		privateKey, publicKey, keyErr := webpush.GenerateVAPIDKeys()
		if keyErr != nil {
			slog.Error("Failed to generate VAPID keys", "error", keyErr)
			os.Exit(1)
		}
		pushCfg.VAPIDPrivateKey = privateKey
		pushCfg.VAPIDPublicKey = publicKey
		slog.Info("Generated VAPID key pair, set VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY to persist it",
			"public_key", publicKey)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Notification surface: in-process center fanning out to Web Push
	// subscribers and connected display clients.
	center := notify.NewCenter(logger)
	center.AddSink(notify.NewPushSink(repo, pushCfg.VAPIDPublicKey, pushCfg.VAPIDPrivateKey, pushCfg.Subscriber, logger))
	feed := notify.NewFeed(center, logger)
	center.AddSink(feed)

	presenter := notify.NewPresenter(center, repo, logger)

	// Restriction feed connector and the deferral unit manager.
	restCfg := restriction.Config{
		Addr:           cfg.Restriction.Addr,
		Password:       cfg.Restriction.Password,
		DB:             cfg.Restriction.DB,
		Channel:        cfg.Restriction.Channel,
		StateKey:       cfg.Restriction.StateKey,
		ConnectTimeout: cfg.Restriction.ConnectTimeout,
	}
	connector := restriction.NewConnector(restCfg, logger)

	units := unit.NewManager(func() *unit.Unit {
		return unit.New(ctx, unit.ConnectFunc(func(ctx context.Context) (unit.Conn, error) {
			return connector.Connect(ctx)
		}), presenter, logger)
	}, logger)

	check := func(ctx context.Context) (bool, error) {
		return restriction.CheckOnce(ctx, restCfg)
	}

	// Initialize handlers.
	handler := api.NewHandler(repo, units, check, center, pushCfg.VAPIDPublicKey)
	healthHandler := api.NewHealthHandler(repo)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	healthHandler.RegisterHealth(r)
	handler.RegisterRoutes(r)

	// Notification display feed and metrics.
	r.Get("/ws/notifications", feed.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	// Create server.
	// Note: WebSocket feed connections stay open (no WriteTimeout).
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	// Tear down the live deferral unit so its feed subscription is closed.
	units.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
