package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/pocketbase/pocketbase/tools/hook"
	"golang.org/x/sync/errgroup"

	"ticket-market/config"
	"ticket-market/internal/handlers"
	"ticket-market/internal/services"
	"ticket-market/internal/store"
	_ "ticket-market/migrations"
	"ticket-market/monitoring"
	"ticket-market/security"
	"ticket-market/utils"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup graceful shutdown
	go handleShutdown(cancel)

	db, err := openStore(ctx, app, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	checks := map[string]monitoring.Pinger{"database": db}

	// Rate limiting is optional; without Redis the guarded routes are open.
	var limiter *hook.Handler[*core.RequestEvent]
	if cfg.EnableRateLimit {
		redisClient, err := utils.NewRedisClient(ctx, cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer redisClient.Close()

		limiter = security.NewRateLimiter(redisClient, cfg.RateLimitPerMinute).Middleware()
		checks["redis"] = monitoring.PingerFunc(func(ctx context.Context) error {
			return utils.RedisHealthCheck(ctx, redisClient)
		})
	}

	// Initialize services
	publisher := services.NewPublisher(services.PubNubConfig{
		PublishKey:   cfg.PubNubPublishKey,
		SubscribeKey: cfg.PubNubSubscribeKey,
		SecretKey:    cfg.PubNubSecretKey,
	})
	monitor := monitoring.NewMonitor(db)
	settlement := services.NewSettlement(db, services.SettlementConfig{
		TxTimeout: cfg.TxTimeout,
		MinTopUp:  cfg.MinTopUpAmount,
	}, services.NewRealtime(publisher), monitor)

	// Initialize handlers
	h := handlers.NewHandlers(settlement)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{})
	app.RootCmd.AddCommand(newResetWalletsCmd(settlement))

	g, gctx := errgroup.WithContext(ctx)

	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		h.Register(se.Router, limiter)

		if cfg.EnableMetrics {
			g.Go(func() error {
				return monitor.Run(gctx, cfg.MetricsInterval)
			})
			g.Go(func() error {
				return monitoring.Serve(gctx, ":"+cfg.MetricsPort, monitoring.NewServer(checks))
			})
		}

		slog.Info("server routes registered", "environment", cfg.Environment, "driver", db.Dialect())
		return se.Next()
	})

	app.OnTerminate().BindFunc(func(e *core.TerminateEvent) error {
		cancel()
		if err := g.Wait(); err != nil {
			slog.Error("background services stopped", "error", err)
		}
		return e.Next()
	})

	if len(os.Args) == 1 {
		app.RootCmd.SetArgs([]string{"serve", "--http=0.0.0.0:" + cfg.Port})
	}

	return app.Start()
}

// openStore returns the external Postgres store when one is configured and
// the PocketBase database otherwise. The PocketBase schema is created by
// the marketplace migration.
func openStore(ctx context.Context, app core.App, cfg *config.Config) (*store.DB, error) {
	switch cfg.DBDriver {
	case "":
		return store.FromApp(app), nil
	case "postgres":
		db, err := store.Open(cfg.DBDriver, cfg.DatabaseURL, cfg.LockTimeout)
		if err != nil {
			return nil, err
		}
		if err := db.Ping(ctx); err != nil {
			return nil, errors.Join(fmt.Errorf("connecting to postgres: %w", err), db.Close())
		}
		if err := store.CreateSchema(ctx, db.Builder(), db.Dialect()); err != nil {
			return nil, errors.Join(err, db.Close())
		}
		slog.Info("using postgres store")
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	slog.Info("shutdown signal received, cleaning up")
	cancel()
}
