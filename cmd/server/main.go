// tradevoice relay server: fronts the voice-agent platform for the crypto
// trading assistant web client.
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

	"github.com/ashureev/tradevoice/internal/api"
	"github.com/ashureev/tradevoice/internal/calls"
	"github.com/ashureev/tradevoice/internal/callwatch"
	"github.com/ashureev/tradevoice/internal/config"
	"github.com/ashureev/tradevoice/internal/conversation"
	"github.com/ashureev/tradevoice/internal/middleware"
	"github.com/ashureev/tradevoice/internal/persona"
	"github.com/ashureev/tradevoice/internal/platform"
	"github.com/ashureev/tradevoice/internal/provision"
	"github.com/ashureev/tradevoice/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func main() {
	config.RegisterFlags(pflag.CommandLine)
	pflag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
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
	if err := cfg.ApplyFlags(pflag.CommandLine); err != nil {
		slog.Error("Failed to apply flags", "error", err)
		os.Exit(1)
	}
	if l, err := config.ParseLevel(cfg.LogLevel); err == nil {
		level.Set(l)
	}
	if cfg.Platform.APIKey == "" {
		slog.Warn("PLATFORM_API_KEY is not set; platform calls will be rejected")
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "store", cfg.Store.Driver)

	p, err := persona.Load(cfg.PersonaPath)
	if err != nil {
		slog.Error("Failed to load persona", "error", err)
		os.Exit(1)
	}
	slog.Info("Persona loaded", "name", p.Name, "voice", p.Voice, "tools", len(p.Tools))

	client, err := platform.NewClient(platform.Credentials{
		APIKey:  cfg.Platform.APIKey,
		BaseURL: cfg.Platform.BaseURL,
	}, platform.NewHTTPClient(cfg.Platform.Timeout, "tradevoice"), logger)
	if err != nil {
		slog.Error("Failed to initialize platform client", "error", err)
		os.Exit(1)
	}

	// Initialize dependencies.
	repo, err := store.Open(cfg.Store.Driver, cfg.Store.DBPath)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Store health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Store ready", "driver", repo.Name())

	// Conversation sinks. The in-memory log stays authoritative; sinks only
	// receive copies.
	var sinks []conversation.Sink
	registryOpts := []conversation.Option{conversation.WithLogger(logger)}
	if cfg.Store.Driver == "sqlite" {
		sinks = append(sinks, repo)
		registryOpts = append(registryOpts, conversation.WithLoader(repo))
	}
	if cfg.ConversationLog.Enabled {
		fileSink, err := conversation.NewFileSink(conversation.FileSinkConfig{
			Dir:           cfg.ConversationLog.Dir,
			GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
			GlobalPath:    cfg.ConversationLog.GlobalPath,
		})
		if err != nil {
			slog.Error("Failed to initialize conversation log files", "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, fileSink)
	}
	dispatcher := conversation.NewDispatcher(cfg.ConversationLog.QueueSize, logger, sinks...)
	defer func() {
		if closeErr := dispatcher.Close(); closeErr != nil {
			slog.Error("Failed to close conversation sinks", "error", closeErr)
		}
	}()
	registryOpts = append(registryOpts, conversation.WithSink(dispatcher))
	logs := conversation.NewRegistry(registryOpts...)

	// Initialize services.
	callManager := calls.NewManager(client, repo, logger)
	handler := api.NewHandler(api.Deps{
		Provisioner: provision.NewService(client, p, logs, logger),
		Calls:       callManager,
		Watcher: &callwatch.Poller{
			Source:      callManager,
			Interval:    cfg.CallWatch.Interval,
			MaxInterval: cfg.CallWatch.MaxInterval,
			Timeout:     cfg.CallWatch.Timeout,
			Logger:      logger,
		},
		Conversations:  logs,
		SinkStats:      dispatcher.Stats,
		AllowedOrigins: cfg.AllowedOrigins,
		IsDev:          cfg.IsDevelopment(),
		Logger:         logger,
	})

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	handler.RegisterRoutes(r)

	// Call watches hold connections for the life of a call, so there is no
	// WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Hijacked WebSocket connections are not tracked by Shutdown.
	handler.Watches().CloseAll("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully", "sinks", dispatcher.Stats())
}
