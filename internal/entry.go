// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/hashnote/internal/api"
	"github.com/starford/hashnote/internal/attachments"
	"github.com/starford/hashnote/internal/cache"
	"github.com/starford/hashnote/internal/inbox"
	"github.com/starford/hashnote/internal/mcpserver"
	"github.com/starford/hashnote/internal/noteservice"
	"github.com/starford/hashnote/internal/sse"
	"github.com/starford/hashnote/internal/storage"
	"github.com/starford/hashnote/internal/store"
)

// core holds the components shared by the HTTP server and the MCP server.
type core struct {
	logger *slog.Logger
	db     *store.DB
	cache  *cache.Cache
	notes  *noteservice.Service
	assets *attachments.Store
	// local is set when attachments live on disk and must be served.
	local *attachments.Local
}

func (c *core) close() {
	if err := c.cache.Close(); err != nil {
		c.logger.Warn("cache close failed", slog.String("error", err.Error()))
	}
	if err := c.db.Close(); err != nil {
		c.logger.Warn("database close failed", slog.String("error", err.Error()))
	}
}

func setup(ctx context.Context, opts []Option, pub noteservice.Publisher) (*core, *Config, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := newLogger(app.logOutput, cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("attachments_backend", cfg.Attachments.Backend),
		slog.Bool("cache_enabled", cfg.Cache.Enabled()),
		slog.Bool("inbox_enabled", cfg.Inbox.Enabled()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	loc, err := cfg.App.Location()
	if err != nil {
		return nil, nil, fmt.Errorf("load timezone: %w", err)
	}

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init store: %w", err)
	}
	c := &core{logger: logger, db: db}

	if cfg.Cache.Enabled() {
		tagCache, err := cache.Dial(ctx, cfg.Cache.RedisAddr, cfg.Cache.TTL)
		if err != nil {
			// The cache is an optimization; run without it.
			logger.Warn("redis unavailable, tag cache disabled",
				slog.String("addr", cfg.Cache.RedisAddr), slog.String("error", err.Error()))
		} else {
			c.cache = tagCache
		}
	}

	svcOpts := []noteservice.Option{noteservice.WithCache(c.cache), noteservice.WithLocation(loc)}
	if pub != nil {
		svcOpts = append(svcOpts, noteservice.WithPublisher(pub))
	}
	c.notes = noteservice.New(db, svcOpts...)

	backend, err := c.attachmentBackend(ctx, cfg.Attachments)
	if err != nil {
		c.close()
		return nil, nil, err
	}
	c.assets = attachments.NewStore(backend)

	return c, cfg, nil
}

func (c *core) attachmentBackend(ctx context.Context, cfg AttachmentsConfig) (attachments.Backend, error) {
	if cfg.Backend == AttachmentsS3 {
		s3, err := attachments.NewS3(ctx, attachments.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Bucket:    cfg.S3.Bucket,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Secure:    cfg.S3.Secure,
			PublicURL: cfg.S3.PublicURL,
		})
		if err != nil {
			return nil, fmt.Errorf("init s3 attachments: %w", err)
		}
		return s3, nil
	}

	fs, err := storage.NewFS(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("init attachments dir: %w", err)
	}
	c.local = attachments.NewLocal(fs, cfg.PublicURL)
	return c.local, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// Run starts the HTTP server, and the inbox importer when configured, with
// the given options.
func Run(ctx context.Context, opts ...Option) error {
	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	c, cfg, err := setup(ctx, opts, broker)
	if err != nil {
		return err
	}
	defer c.close()
	logger := c.logger

	apiRouter := api.NewRouter(api.Deps{
		Notes: c.notes,
		Auth: api.NewAuth(api.AuthOptions{
			Mode:        cfg.Auth.Mode,
			Token:       cfg.Auth.Token,
			JWTSecret:   cfg.Auth.JWTSecret,
			Issuer:      cfg.Auth.Issuer,
			Audience:    cfg.Auth.Audience,
			DefaultUser: DefaultUser,
		}),
		Assets: c.assets,
		Events: broker,
	})

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
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	// Uploaded images are public: note content embeds their URLs.
	if c.local != nil && isPath(cfg.Attachments.PublicURL) {
		prefix := strings.TrimSuffix(cfg.Attachments.PublicURL, "/")
		r.Handle(prefix+"/*", http.StripPrefix(prefix, c.local.Handler()))
	}

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Shutdown does not cancel open event streams; closing the broker ends them.
	httpServer.RegisterOnShutdown(broker.Close)

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Import dropped files from the inbox directory.
	if cfg.Inbox.Enabled() {
		fs, err := storage.NewFS(cfg.Inbox.Path)
		if err != nil {
			return fmt.Errorf("init inbox dir: %w", err)
		}
		in := inbox.New(fs, c.notes, cfg.Inbox.User, logger)
		g.Go(func() error {
			if err := in.Watch(gCtx, func(n int) {
				logger.Info("inbox imported", slog.Int("notes", n))
			}); err != nil {
				logger.Error("inbox watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

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

// errShutdown cancels the errgroup so that the inbox watcher stops with the
// HTTP server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	c, cfg, err := setup(ctx, opts, nil)
	if err != nil {
		return err
	}
	defer c.close()

	c.logger.Info("MCP server starting", slog.String("user", cfg.MCP.User))
	srv := mcpserver.New(c.notes, c.assets, cfg.MCP.User)
	if err := srv.ServeStdio(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

func isPath(u string) bool {
	return len(u) > 1 && u[0] == '/'
}
