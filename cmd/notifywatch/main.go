package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/notify-channel/internal/archive"
	"github.com/rickgao/notify-channel/internal/backoff"
	"github.com/rickgao/notify-channel/internal/channel"
	"github.com/rickgao/notify-channel/internal/config"
	"github.com/rickgao/notify-channel/internal/identity"
	"github.com/rickgao/notify-channel/internal/inbox"
	"github.com/rickgao/notify-channel/internal/metrics"
	"github.com/rickgao/notify-channel/internal/notification"
	"github.com/rickgao/notify-channel/internal/statusapi"
	"github.com/rickgao/notify-channel/internal/transport"
	"github.com/rickgao/notify-channel/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/notifywatch.local.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	logger.Info("starting notifywatch",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"server", cfg.Server.URL,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("notifywatch failed", "error", err)
		os.Exit(1)
	}
	logger.Info("notifywatch stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	m := metrics.New(cfg.Metrics.Runtime)

	store, closeStore, err := buildIdentityStore(cfg.Identity)
	if err != nil {
		return fmt.Errorf("identity store: %w", err)
	}
	defer closeStore()

	dialer := transport.NewWSDialer(transport.Config{
		URL:              cfg.Server.URL,
		Path:             cfg.Server.Path,
		HandshakeTimeout: cfg.Server.HandshakeTimeout,
		WriteTimeout:     cfg.Server.WriteTimeout,
		PingInterval:     cfg.Server.PingInterval,
		PingTimeout:      cfg.Server.PingTimeout,
		BufferSize:       cfg.Server.BufferSize,
		UserAgent:        version.UserAgent("notifywatch"),
	}, logger)

	ch := channel.New(dialer, store, channel.Options{
		Backoff: backoff.Policy{
			BaseDelay:   cfg.Reconnect.BaseDelay,
			MaxDelay:    cfg.Reconnect.MaxDelay,
			Jitter:      cfg.Reconnect.Jitter,
			MaxAttempts: cfg.Reconnect.MaxAttempts,
			ResetAfter:  cfg.Reconnect.ResetAfter,
		},
		Metrics: m,
	}, logger)

	box := inbox.New(cfg.Inbox.MaxItems, logger)
	box.Attach(ch)

	for _, kind := range notification.KnownKinds() {
		ch.OnNotification(kind, func(env notification.Envelope) {
			logger.Info("notification",
				"kind", env.Kind,
				"id", env.ID,
				"title", env.Title,
				"created_at", env.CreatedAt,
			)
			m.InboxUnread(box.UnreadCount())
		})
	}
	ch.OnConnectionChange(func(connected bool) {
		logger.Info("connection changed", "connected", connected)
	})

	// Optional archive
	var (
		pool   *pgxpool.Pool
		writer *archive.Writer
	)
	if cfg.Archive.Enabled {
		logger.Info("connecting to archive database",
			"host", cfg.Archive.Database.Host,
			"port", cfg.Archive.Database.Port,
			"database", cfg.Archive.Database.Name,
		)
		pool, err = archive.Connect(ctx, cfg.Archive.Database)
		if err != nil {
			return fmt.Errorf("connect archive: %w", err)
		}
		defer pool.Close()

		id, err := store.Load(ctx)
		if err != nil && !errors.Is(err, identity.ErrNoIdentity) {
			logger.Warn("failed to load identity for archive", "error", err)
		}

		queue := archive.NewQueue[archive.Record](cfg.Archive.QueueSize, cfg.Archive.MaxQueue)
		writer = archive.NewWriter(archive.WriterConfig{
			BatchSize:     cfg.Archive.BatchSize,
			FlushInterval: cfg.Archive.FlushInterval,
		}, pool, queue, id.UserID, m, logger)

		if err := writer.EnsureSchema(ctx); err != nil {
			return err
		}
		if err := writer.Start(ctx); err != nil {
			return fmt.Errorf("start archive writer: %w", err)
		}
		writer.Attach(ch)
	}

	// Status API and metrics
	apiCfg := statusapi.Config{Channel: ch, Inbox: box}
	if pool != nil {
		apiCfg.Archive = pool
	}
	if cfg.Metrics.Enabled {
		apiCfg.Metrics = m.Handler()
		apiCfg.MetricsPath = cfg.Metrics.Path
	}
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           statusapi.NewHandler(apiCfg, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if _, err := ch.CreateConnection(ctx); err != nil {
		return fmt.Errorf("create connection: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting status server", "port", cfg.Metrics.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("status server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		ch.Disconnect()
		if writer != nil {
			if err := writer.Stop(shutdownCtx); err != nil {
				logger.Warn("archive writer stop", "error", err)
			}
		}
		return httpServer.Shutdown(shutdownCtx)
	})

	logger.Info("notifywatch running",
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	return g.Wait()
}

// buildIdentityStore returns the configured store and a cleanup func.
func buildIdentityStore(cfg config.IdentityConfig) (identity.Store, func(), error) {
	noop := func() {}
	switch cfg.Source {
	case config.IdentitySourceFile:
		return identity.NewFileStore(cfg.File), noop, nil
	case config.IdentitySourceEnv:
		return identity.NewEnvStore(), noop, nil
	case config.IdentitySourceStatic:
		return identity.Static{UserID: cfg.UserID, Token: cfg.Token}, noop, nil
	case config.IdentitySourceRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return identity.NewRedisStore(client, cfg.Redis.Prefix, cfg.Redis.Session), func() { client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown identity source %q", cfg.Source)
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
