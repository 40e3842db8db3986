package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/divinahealthcare/site/internal/auth"
	"github.com/divinahealthcare/site/internal/catalog"
	"github.com/divinahealthcare/site/internal/config"
	"github.com/divinahealthcare/site/internal/ledger"
	"github.com/divinahealthcare/site/internal/logging"
	"github.com/divinahealthcare/site/internal/mail"
	"github.com/divinahealthcare/site/internal/metrics"
	"github.com/divinahealthcare/site/internal/storage"
	"github.com/divinahealthcare/site/internal/submit"
	"github.com/divinahealthcare/site/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Provider,
		"mail", cfg.Mail.Provider,
		"database", cfg.Database.Enabled(),
		"redis", cfg.Redis.URL != "",
		"portal", cfg.Portal.Enabled,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	if err := run(cfg); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := loadCatalog(cfg.Site.ContentFile)
	if err != nil {
		return err
	}
	slog.Info("catalog loaded",
		"products", len(store.Products()),
		"services", len(store.Services()),
		"jobs", len(store.Jobs()),
	)

	// Attachment uploads go through a bounded pool of slots.
	uploader, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	limiter := storage.NewLimiter(cfg.Attachment.MaxConcurrent, cfg.Attachment.MaxWaitTime)
	uploader = storage.NewLimited(uploader, limiter)

	transport, err := mail.New(ctx, cfg.Mail)
	if err != nil {
		return err
	}

	m := metrics.New()
	observers := submit.Observers{m}
	alerter, err := mail.NewAlerter(ctx, cfg.Mail)
	if err != nil {
		return err
	}
	if alerter != nil {
		observers = append(observers, alerter)
	}

	opts := []submit.Option{
		submit.WithObserver(observers),
		submit.WithLocation(cfg.Site.Location()),
		submit.WithServiceID(cfg.Mail.ServiceID),
	}
	deps := web.Deps{
		Catalog: store,
		Forms: submit.Forms(submit.FormsConfig{
			TemplateID:            cfg.Mail.TemplateID,
			ApplicationTemplateID: cfg.Mail.ApplicationTemplateID,
			CareersEmail:          cfg.Site.CareersEmail,
			InboxEmail:            cfg.Site.InboxEmail,
			MaxAttachmentSize:     cfg.Attachment.MaxFileSize,
			AttachmentExtensions:  cfg.Attachment.AllowedExtensions,
		}),
		Metrics: m,
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Database.Enabled() {
		pool, err := connectDB(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()

		ledgerStore := ledger.New(pool)
		if err := ledgerStore.Migrate(ctx); err != nil {
			return err
		}
		opts = append(opts, submit.WithRecorder(ledgerStore))
		deps.Ledger = ledgerStore

		g.Go(func() error {
			return ledgerStore.StartRetention(gctx, ledger.RetentionConfig{
				RetentionDays: cfg.Ledger.RetentionDays,
				CheckInterval: cfg.Ledger.CheckInterval,
			})
		})

		if cfg.Portal.Enabled {
			provider := auth.NewPGProvider(pool, cfg.Portal.SessionTTL)
			if err := provider.Migrate(ctx); err != nil {
				return err
			}
			deps.Auth = provider

			g.Go(func() error {
				return provider.StartSessionCleanup(gctx, cfg.Portal.CleanupInterval)
			})
		}
	} else if cfg.Portal.Enabled {
		slog.Warn("portal enabled without a database, not mounting /portal")
	}

	if cfg.Redis.URL != "" {
		client, err := connectRedis(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer client.Close()
		opts = append(opts, submit.WithGuard(submit.NewRedisGuard(client, cfg.Redis.GuardTTL)))
	}

	deps.Pipeline = submit.New(uploader, transport, opts...)
	server := web.NewServer(cfg, deps)

	g.Go(func() error {
		slog.Info("server starting", "addr", cfg.Server.Addr())
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		// Wait for active uploads to complete (with timeout)
		if status := limiter.Status(); status.Active > 0 {
			slog.Info("waiting for uploads to complete", "active", status.Active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("uploads did not complete in time", "error", err)
			} else {
				slog.Info("all uploads completed")
			}
		}

		if alerter != nil {
			alerter.Wait()
		}
		return nil
	})

	return g.Wait()
}

func loadCatalog(path string) (*catalog.Store, error) {
	if path != "" {
		slog.Info("loading content file", "path", path)
		return catalog.LoadFile(path)
	}
	return catalog.Default()
}

func connectDB(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	// Parse and configure connection pool
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}

func connectRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	slog.Info("connected to redis", "addr", opts.Addr)
	return client, nil
}
