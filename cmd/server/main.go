package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/iho/ledgercore/internal/adapter/http"
	"github.com/iho/ledgercore/internal/adapter/http/handler"
	"github.com/iho/ledgercore/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/ledgercore/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/ledgercore/internal/adapter/repository/redis"
	"github.com/iho/ledgercore/internal/infrastructure/clock"
	"github.com/iho/ledgercore/internal/infrastructure/config"
	"github.com/iho/ledgercore/internal/infrastructure/eventpublisher"
	"github.com/iho/ledgercore/internal/infrastructure/idgen"
	"github.com/iho/ledgercore/internal/infrastructure/logger"
	"github.com/iho/ledgercore/internal/infrastructure/metrics"
	"github.com/iho/ledgercore/internal/infrastructure/postgres"
	"github.com/iho/ledgercore/internal/infrastructure/redis"
	"github.com/iho/ledgercore/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}

	log.Info().Msg("server stopped")
}

// backend is the set of ports one storage implementation provides.
type backend struct {
	txManager usecase.TransactionManager
	commands  usecase.CommandStore
	accounts  usecase.AccountRepository
	sequences usecase.SequenceAllocator
	transfers usecase.TransferRepository
	entries   usecase.EntryRepository
	snapshots usecase.SnapshotRepository
	ledger    usecase.LedgerRepository
	outbox    usecase.OutboxRepository
	retrier   usecase.Retrier
	checks    map[string]handler.PingFunc
	close     func()
}

func newMemoryBackend() *backend {
	store := memory.NewStore()
	entries := memory.NewEntryRepository(store)

	return &backend{
		txManager: memory.NewTxManager(store),
		commands:  memory.NewCommandStore(store),
		accounts:  memory.NewAccountRepository(store),
		sequences: memory.NewSequenceAllocator(store),
		transfers: memory.NewTransferRepository(store),
		entries:   entries,
		snapshots: memory.NewSnapshotRepository(store),
		ledger:    entries,
		outbox:    memory.NewOutboxRepository(store),
		retrier:   memory.NewRetrier(),
		checks:    map[string]handler.PingFunc{},
		close:     func() {},
	}
}

func newPostgresBackend(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*backend, error) {
	if cfg.RunMigrations {
		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, log); err != nil {
			return nil, err
		}
	}

	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	log.Info().Msg("connected to postgres")

	return &backend{
		txManager: postgresRepo.NewTxManager(pool),
		commands:  postgresRepo.NewCommandStore(pool),
		accounts:  postgresRepo.NewAccountRepository(pool),
		sequences: postgresRepo.NewSequenceAllocator(),
		transfers: postgresRepo.NewTransferRepository(pool),
		entries:   postgresRepo.NewEntryRepository(pool),
		snapshots: postgresRepo.NewSnapshotRepository(pool),
		ledger:    postgresRepo.NewLedgerRepository(pool),
		outbox:    postgresRepo.NewOutboxRepository(),
		retrier:   postgresRepo.NewRetrier(cfg.TransferMaxRetries, log),
		checks:    map[string]handler.PingFunc{"postgres": pool.Ping},
		close:     pool.Close,
	}, nil
}

// app is a fully wired server.
type app struct {
	router  http.Handler
	relay   *eventpublisher.Relay
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger, reg *prometheus.Registry) (*app, error) {
	var (
		b   *backend
		err error
	)

	switch cfg.StorageBackend {
	case config.StorageBackendMemory:
		log.Warn().Msg("using in-memory storage; data is lost on restart")
		b = newMemoryBackend()
	default:
		b, err = newPostgresBackend(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
	}

	a := &app{closers: []func(){b.close}}

	m := metrics.New(reg)
	ids := idgen.NewULIDGenerator()
	clk := clock.System{}

	opts := []usecase.TransferServiceOption{
		usecase.WithMetrics(m),
		usecase.WithTimeout(cfg.TransferTimeout),
	}

	health := handler.NewHealthHandler()
	for name, ping := range b.checks {
		health.WithCheck(name, ping)
	}

	if cfg.RedisURL != "" {
		client, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { client.Close() })
		log.Info().Msg("connected to redis")

		opts = append(opts, usecase.WithResultCache(redisRepo.NewResultCache(client, cfg.ResultCacheTTL)))
		health.WithCheck("redis", pingRedis(client))
	}

	transferHandler := usecase.NewTransferHandler(usecase.TransferHandlerDeps{
		Commands:  b.commands,
		Accounts:  b.accounts,
		Sequences: b.sequences,
		Transfers: b.transfers,
		Entries:   b.entries,
		Snapshots: b.snapshots,
		Outbox:    b.outbox,
		IDGen:     ids,
		Clock:     clk,
		Logger:    log,
	})

	service := usecase.NewTransferService(b.txManager, transferHandler, b.retrier, log, opts...)
	accountUC := usecase.NewAccountUseCase(b.txManager, b.accounts, b.entries, b.snapshots, ids, clk, m)
	ledgerUC := usecase.NewLedgerUseCase(b.accounts, b.transfers, b.entries, b.snapshots, b.ledger, clk, m)

	a.router = httpAdapter.NewRouter(httpAdapter.RouterConfig{
		AccountHandler:  handler.NewAccountHandler(accountUC),
		TransferHandler: handler.NewTransferHandler(service, ledgerUC),
		EntryHandler:    handler.NewEntryHandler(accountUC, ledgerUC),
		LedgerHandler:   handler.NewLedgerHandler(ledgerUC),
		HealthHandler:   health,
		Metrics:         m,
		MetricsHandler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Logger:          log,
	})

	if cfg.OutboxEnabled {
		publisher, closePublisher, err := newPublisher(ctx, cfg, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, closePublisher)

		a.relay = eventpublisher.NewRelay(eventpublisher.Config{
			TxManager:   b.txManager,
			OutboxRepo:  b.outbox,
			Publisher:   publisher,
			Clock:       clk,
			Metrics:     m,
			Logger:      log.With().Str("component", "outbox_relay").Logger(),
			BatchSize:   cfg.OutboxBatchSize,
			MaxAttempts: cfg.OutboxMaxAttempts,
			Interval:    cfg.OutboxInterval,
		})
	}

	return a, nil
}

// newPublisher returns the AMQP publisher when AMQP_URL is set, else one that logs events.
func newPublisher(ctx context.Context, cfg *config.Config, log zerolog.Logger) (usecase.Publisher, func(), error) {
	if cfg.AMQPURL == "" {
		return eventpublisher.NewLogPublisher(log), func() {}, nil
	}

	p, err := eventpublisher.NewAMQPPublisher(ctx, cfg.AMQPURL, cfg.AMQPQueue, log)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("queue", cfg.AMQPQueue).Msg("connected to RabbitMQ")

	return p, func() {
		if err := p.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close AMQP publisher")
		}
	}, nil
}

func pingRedis(client *goredis.Client) handler.PingFunc {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

// run serves HTTP and relays the outbox until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := newApp(ctx, cfg, log, reg)
	if err != nil {
		return err
	}
	defer a.Close()

	listener, err := net.Listen("tcp", ":"+cfg.HTTPPort)
	if err != nil {
		return fmt.Errorf("listen on port %s: %w", cfg.HTTPPort, err)
	}

	return serve(ctx, cfg, log, a, listener)
}

func serve(ctx context.Context, cfg *config.Config, log zerolog.Logger, a *app, listener net.Listener) error {
	server := &http.Server{
		Handler:      a.router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		// Requests outlive the signal; Shutdown drains them.
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", listener.Addr().String()).Msg("starting server")
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	if a.relay != nil {
		g.Go(func() error {
			if err := a.relay.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	return g.Wait()
}
