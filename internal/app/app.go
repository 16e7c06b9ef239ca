package app

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

	"github.com/hibiken/asynq"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/kirinyoku/staygo/internal/config"
	"github.com/kirinyoku/staygo/internal/postgres"
	"github.com/kirinyoku/staygo/internal/queue"
	"github.com/kirinyoku/staygo/internal/ratelimit"
	"github.com/kirinyoku/staygo/internal/redis"
	"github.com/kirinyoku/staygo/internal/repository"
	"github.com/kirinyoku/staygo/internal/repository/memory"
	postgresrepo "github.com/kirinyoku/staygo/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/staygo/internal/repository/redis"
	"github.com/kirinyoku/staygo/internal/service"
	"github.com/kirinyoku/staygo/internal/service/booking"
	"github.com/kirinyoku/staygo/internal/service/broadcast"
	"github.com/kirinyoku/staygo/internal/service/catalogue"
	httpgin "github.com/kirinyoku/staygo/internal/transport/http/gin"
	"github.com/kirinyoku/staygo/internal/worker"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	pubsub     *redisrepo.InventoryPubSub
	streams    *httpgin.StreamHub
	worker     *worker.Worker
	closers    []func() error
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger, streams: httpgin.NewStreamHub()}

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	var (
		rdb     *goredis.Client
		cache   *redisrepo.Cache
		idem    *redisrepo.IdempotencyStore
		limiter booking.Limiter
	)

	if cfg.Redis.Enabled {
		rdb, err = redis.New(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		a.closers = append(a.closers, rdb.Close)

		cache = redisrepo.New(rdb)
		idem = redisrepo.NewIdempotencyStore(rdb, 24*time.Hour)
		a.pubsub = redisrepo.NewInventoryPubSub(rdb)
	}

	if cfg.Booking.RateLimit > 0 {
		if rdb != nil {
			limiter = redisrepo.NewSlidingWindowLimiter(rdb, "bookings", cfg.Booking.RateLimit, cfg.Booking.RateWindow)
		} else {
			limiter = ratelimit.New(cfg.Booking.RateLimit, cfg.Booking.RateWindow)
		}
	}

	opts := []broadcast.Option{
		broadcast.WithErrorHandler(func(op string, err error) {
			logger.Warn("post-commit side effect failed", "op", op, "error", err)
		}),
		broadcast.WithLocalListener(a.streams.Notify),
	}
	if a.pubsub != nil {
		opts = append(opts, broadcast.WithNotifier(a.pubsub))
	}

	if cfg.AMQP.URL != "" {
		pub, err := queue.Dial(cfg.AMQP.URL, cfg.AMQP.Exchange, logger.With("component", "queue"))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize amqp: %w", err)
		}
		a.closers = append(a.closers, pub.Close)
		opts = append(opts, broadcast.WithEvents(pub))
	}

	services := service.NewServices(store, cache, broadcast.New(cache, opts...), limiter, service.Config{
		Booking: booking.Config{ReferenceAttempts: cfg.Booking.ReferenceAttempts},
	})

	n, err := services.Catalogue.SeedDefaults(ctx, catalogue.Defaults())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to seed room types: %w", err)
	}
	if n > 0 {
		logger.Info("seeded default room types", "count", n)
	}

	if cfg.Worker.Enabled {
		a.worker = worker.New(worker.Config{
			Redis:        asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB},
			CompleteSpec: cfg.Worker.CompleteSpec,
		}, services.Lifecycle, logger.With("component", "worker"))
	}

	router := httpgin.NewRouter(httpgin.Deps{
		Services:  services,
		Idem:      idem,
		Streams:   a.streams,
		JWTSecret: []byte(cfg.Auth.JWTSecret),
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	a.httpServer.RegisterOnShutdown(a.streams.Close)

	return a, nil
}

func (a *App) openStore(ctx context.Context) (repository.Store, error) {
	if a.cfg.Storage == config.StorageMemory {
		a.logger.Warn("using in-memory storage, data is lost on exit")
		return memory.New(), nil
	}

	pool, err := postgres.New(ctx, postgres.Config{
		DSN:      a.cfg.Postgres.DSN(),
		MaxConns: a.cfg.Postgres.MaxConns,

		ConnectAttempts: a.cfg.Postgres.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}
	a.closers = append(a.closers, func() error { pool.Close(); return nil })

	if a.cfg.Postgres.Migrate {
		if err := postgresrepo.Migrate(ctx, pool); err != nil {
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}
	}

	return postgresrepo.NewStore(pool, postgresrepo.WithMaxAttempts(a.cfg.Postgres.TxMaxAttempts)), nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer a.Close()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Inventory changes from every instance wake this instance's streams
	if a.pubsub != nil {
		g.Go(func() error {
			err := a.pubsub.Subscribe(gCtx, a.streams.NotifyContext)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("inventory subscription: %w", err)
			}
			return nil
		})
	}

	if a.worker != nil {
		g.Go(func() error {
			return a.worker.Run(gCtx)
		})
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
