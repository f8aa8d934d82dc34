// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/backlinks/internal/api"
	"github.com/starford/backlinks/internal/collector"
	"github.com/starford/backlinks/internal/index"
	"github.com/starford/backlinks/internal/mcpserver"
	"github.com/starford/backlinks/internal/noteservice"
	"github.com/starford/backlinks/internal/sse"
	"github.com/starford/backlinks/internal/storage"
)

// runtime holds what every command needs: a logger, the vault and a synced index.
type runtime struct {
	cfg    *Config
	logger *slog.Logger
	store  *storage.FS
	db     *index.DB
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOut: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// bootstrap initialises logging, storage and the SQLite index, then runs an
// initial sync. The caller must Close the returned runtime.
func bootstrap(app *application) (*runtime, error) {
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("output_folder", cfg.Backlinks.OutputFolder),
		slog.Int("concurrency", cfg.Backlinks.Concurrency),
		slog.Bool("auto_refresh", cfg.Backlinks.AutoRefresh),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	return &runtime{cfg: cfg, logger: logger, store: store, db: db}, nil
}

func (rt *runtime) Close() error {
	return rt.db.Close()
}

// RunCollect collects backlinks for the note ref once and exits.
func RunCollect(ctx context.Context, ref string, opts ...Option) (*collector.Result, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	rt, err := bootstrap(app)
	if err != nil {
		return nil, err
	}
	defer rt.Close()

	notifier := collector.Multi{collector.LogNotifier{Logger: rt.logger}, app.notifier}
	svc := noteservice.NewService(rt.store, rt.db, rt.logger, rt.cfg.Backlinks.Options(),
		noteservice.WithNotifier(notifier))
	return svc.CollectBacklinks(ctx, ref)
}

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
// Logs must not go to stdout in this mode.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	if app.logOut == os.Stdout {
		app.logOut = os.Stderr
	}
	rt, err := bootstrap(app)
	if err != nil {
		return err
	}
	defer rt.Close()

	notices := &collector.Notices{}
	notifier := collector.Multi{collector.LogNotifier{Logger: rt.logger}, notices}
	svc := noteservice.NewService(rt.store, rt.db, rt.logger, rt.cfg.Backlinks.Options(),
		noteservice.WithNotifier(notifier))

	rt.logger.Info("MCP server starting on stdio")
	return mcpserver.New(svc, notices).ServeStdio()
}

// Run starts the HTTP server, the SSE broker and the vault watcher.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := bootstrap(app)
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg, logger := rt.cfg, rt.logger

	// SSE broker doubles as notifier and viewer for browser clients.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	notifier := collector.Multi{collector.LogNotifier{Logger: logger}, broker, app.notifier}
	svc := noteservice.NewService(rt.store, rt.db, logger, cfg.Backlinks.Options(),
		noteservice.WithNotifier(notifier),
		noteservice.WithViewer(broker))
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := rt.db.AllChecksums(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher: fan note events out to SSE clients and refresh
	// the tracked documents they feed.
	g.Go(func() error {
		return index.Watch(gCtx, rt.db, rt.store, rt.store.Root(), logger, func(kind, path string) {
			broker.PublishNoteEvent(kind, path)
			if !cfg.Backlinks.AutoRefresh {
				return
			}
			if err := svc.Refresh(gCtx, kind, path); err != nil {
				logger.Warn("refresh failed", slog.String("path", path), slog.String("error", err.Error()))
			}
		})
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops once the server is down.
var errShutdown = errors.New("shutdown")
