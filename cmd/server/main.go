package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/eukleia/eukleia/internal/api"
	"github.com/eukleia/eukleia/internal/auth"
	"github.com/eukleia/eukleia/internal/config"
	"github.com/eukleia/eukleia/internal/editor"
	mw "github.com/eukleia/eukleia/internal/middleware"
	"github.com/eukleia/eukleia/internal/store"
	"github.com/eukleia/eukleia/internal/store/postgres"
	"github.com/eukleia/eukleia/internal/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()})))

	settings, err := config.LoadSettings(cfg.SettingsFile)
	if err != nil {
		slog.Error("load settings", "file", cfg.SettingsFile, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snapshots, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("open snapshot store", "error", err)
		os.Exit(1)
	}
	defer snapshots.Close()

	ed, err := editor.New(settings)
	if err != nil {
		slog.Error("create editor", "error", err)
		os.Exit(1)
	}
	defer ed.Close()

	// Resume from the newest snapshot if there is one.
	rec, err := snapshots.Latest(ctx)
	switch {
	case err == nil:
		if err := ed.LoadSnapshot(rec.Snapshot); err != nil {
			slog.Error("load latest snapshot", "id", rec.ID, "error", err)
			os.Exit(1)
		}
		if err := ed.FitToModel(0); err != nil {
			slog.Warn("fit loaded model", "error", err)
		}
		slog.Info("resumed snapshot", "id", rec.ID, "revision", rec.Revision)
	case !errors.Is(err, store.ErrNotFound):
		slog.Warn("read latest snapshot, starting empty", "error", err)
	}

	authService := auth.NewService(cfg.PasswordHash, cfg.JWTSecret)
	authHandler := auth.NewHandler(authService)
	if !authService.Enabled() {
		slog.Warn("PASSWORD_HASH not set, API is open to anyone who can reach it")
	}

	server := api.NewServer(ed, snapshots)
	defer server.Close()
	go server.Run(ctx, cfg.TickInterval)

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(cfg.Origins()))

	r.HandleFunc("/auth/token", authHandler.Token).Methods("POST", "OPTIONS")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Protected API routes
	protected := r.PathPrefix("/api").Subrouter()
	protected.Use(authService.AuthMiddleware)
	server.Register(protected)

	// WebSocket endpoint
	r.HandleFunc("/ws", server.WebSocket(authService, cfg.OriginPatterns()))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		// Stop the hub and ticker first so renderers are closed cleanly.
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr, "auth", authService.Enabled())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// openStore picks Postgres when DATABASE_URL is set and the local SQLite
// file otherwise.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.DatabaseURL != "" {
		slog.Info("using postgres snapshot store")
		return postgres.New(ctx, cfg.DatabaseURL)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	slog.Info("using sqlite snapshot store", "path", cfg.SQLitePath)
	return sqlite.New(cfg.SQLitePath)
}
