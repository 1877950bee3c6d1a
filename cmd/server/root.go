package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Tyrowin/roomchat/internal/config"
	"github.com/Tyrowin/roomchat/internal/events"
	"github.com/Tyrowin/roomchat/internal/logging"
	"github.com/Tyrowin/roomchat/internal/room"
	"github.com/Tyrowin/roomchat/internal/server"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

type serveOptions struct {
	envFile   string
	port      string
	origins   string
	logFormat string
	logLevel  string
}

func newRootCmd() *cobra.Command {
	return buildRootCmd(&serveOptions{})
}

func buildRootCmd(opts *serveOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "chatrelay",
		Short: "Room chat relay over WebSocket",
		Long: `chatrelay accepts WebSocket connections on /ws/chat/<room>/ and
broadcasts every message sent in a room to all of its members.

Configuration is read from the environment (and an optional .env file);
flags override it.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(cmd, opts)
		},
	}

	flags := root.Flags()
	flags.StringVar(&opts.envFile, "env-file", ".env", "path of an optional .env file")
	flags.StringVar(&opts.port, "port", "", "listen address, e.g. :8080 (overrides SERVER_PORT)")
	flags.StringVar(&opts.origins, "origins", "", "comma separated allowed origins, * for any (overrides ALLOWED_ORIGINS)")
	flags.StringVar(&opts.logFormat, "log-format", "", "text or json (overrides LOG_FORMAT)")
	flags.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "chatrelay %s\n", Version)
		},
	})

	return root
}

// loadConfig merges the environment with flags that were explicitly set.
func loadConfig(cmd *cobra.Command, opts *serveOptions) (config.Config, error) {
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return config.Config{}, err
	}
	cfg := config.FromEnv()

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = opts.port
	}
	if flags.Changed("origins") {
		cfg.AllowedOrigins = config.ParseOrigins(opts.origins)
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = opts.logFormat
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}

	cfg = cfg.Sanitize()
	return cfg, cfg.Validate()
}

func runServer(cmd *cobra.Command, opts *serveOptions) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.LogFormat, cfg.LogLevel)
	logger.Info("Starting room chat relay", "version", Version, "addr", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewBus(logger)
	auditLogger := logger.With("component", "audit")
	// Subscriptions outlive the signal context so departures during shutdown
	// are still audited; bus.Close ends them.
	for _, topic := range []string{events.TopicMemberJoined, events.TopicMemberLeft} {
		if err := bus.Subscribe(context.Background(), topic, events.AuditLog(auditLogger)); err != nil {
			return err
		}
	}

	registry := room.NewRegistry()
	router := room.NewRouter(registry, logger)
	hub := server.NewHub(registry, router,
		server.WithNotifier(bus),
		server.WithLogger(logger),
		server.WithMailboxSize(cfg.MailboxSize),
		server.WithMaxMessageSize(cfg.MaxMessageSize),
	)

	handler := server.NewHandler(hub, server.NewOriginPolicy(cfg.AllowedOrigins, logger), nil)
	httpServer := server.CreateServer(cfg.Port, server.SetupRoutes(handler, logger))

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.StartServer(httpServer)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	var errs []error
	if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout); err != nil {
		errs = append(errs, err)
	}
	if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
		errs = append(errs, fmt.Errorf("hub shutdown: %w", err))
	}
	if err := bus.Close(); err != nil {
		errs = append(errs, fmt.Errorf("event bus: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		slog.Error("Shutdown finished with errors", "error", err)
		return err
	}
	slog.Info("Server stopped")
	return nil
}
