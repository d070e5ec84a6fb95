package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"badgegate/internal/access"
	"badgegate/internal/access/handler"
	accessmetrics "badgegate/internal/access/metrics"
	"badgegate/internal/access/publisher"
	"badgegate/internal/people/cache"
	"badgegate/internal/people/invalidation"
	"badgegate/internal/people/store"
	"badgegate/internal/platform/config"
	"badgegate/internal/platform/httpserver"
	"badgegate/internal/platform/kafka"
	"badgegate/internal/platform/logger"
	"badgegate/internal/platform/postgres"
	platformredis "badgegate/internal/platform/redis"
	"badgegate/internal/platform/sqlite"
)

// main wires dependencies from configuration and runs the HTTP server until
// SIGINT or SIGTERM. Business logic lives in internal packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "badgegate: invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	if err := run(cfg, log); err != nil {
		log.Error("badgegate stopped", "error", err)
		os.Exit(1)
	}
}

// personStore is what main needs from a store beyond the service port.
type personStore interface {
	access.PersonStore
	store.Saver
	Ping(ctx context.Context) error
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	checks := map[string]handler.Check{}

	people, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()
	checks["store"] = people.Ping

	personCache, closeCache, err := buildCache(ctx, cfg, log, reg, checks)
	if err != nil {
		return err
	}
	defer closeCache()
	if cfg.Cache.InvalidateChannel != "" {
		// lookups racing a change notification must not re-cache the old record
		personCache = cache.NewGuarded(personCache)
	}

	events, closeEvents, err := buildPublisher(ctx, cfg, log, reg, checks)
	if err != nil {
		return err
	}

	svc, err := access.New(people, personCache, events,
		access.WithLogger(log),
		access.WithMetrics(accessmetrics.New(reg)),
		access.WithTopic(cfg.Kafka.Topic),
	)
	if err != nil {
		_ = closeEvents(ctx)
		return err
	}

	router := newRouter(log, reg,
		handler.NewHealth(checks),
		handler.New(svc, log),
	)
	srv := httpserver.New(cfg.Server.Addr, router, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting badgegate",
			"addr", cfg.Server.Addr,
			"env", cfg.Server.Env,
			"store", cfg.Store.Backend,
			"cache", cfg.Cache.Backend,
			"produce_events", cfg.ProduceEvents(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if cfg.Cache.InvalidateChannel != "" {
		listener := invalidation.New(cfg.Store.PostgresDSN, cfg.Cache.InvalidateChannel, personCache,
			invalidation.WithLogger(log),
			invalidation.WithMetrics(invalidation.NewMetrics(reg)),
		)
		g.Go(func() error {
			return listener.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down badgegate")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// stop taking scans before draining their events
		err := srv.Shutdown(shutdownCtx)
		if cerr := closeEvents(shutdownCtx); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return err
	})

	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (personStore, func(), error) {
	var (
		s       personStore
		closeFn = func() {}
	)

	switch cfg.Store.Backend {
	case config.StorePostgres:
		pool, err := postgres.Open(ctx, cfg.Store.PostgresDSN, cfg.Store.PostgresMaxConn)
		if err != nil {
			return nil, nil, err
		}
		s, closeFn = store.NewPostgres(pool), pool.Close
	case config.StoreSQLite:
		db, err := sqlite.Open(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		s, closeFn = store.NewSQLite(db), func() { _ = db.Close() }
	default:
		s = store.NewInMemory()
	}

	if cfg.Store.SeedDev && cfg.Server.Env == "dev" {
		if err := store.SeedDev(ctx, s); err != nil {
			closeFn()
			return nil, nil, err
		}
		log.Info("seeded dev people", "store", cfg.Store.Backend, "count", len(store.DevPeople()))
	}
	return s, closeFn, nil
}

func buildCache(ctx context.Context, cfg config.Config, log *slog.Logger, reg prometheus.Registerer, checks map[string]handler.Check) (cache.Cache, func(), error) {
	m := cache.NewMetrics(reg)
	memory := func() *cache.Memory {
		return cache.NewMemory(cfg.Cache.MaxEntries, cfg.Cache.TTL, cache.WithMemoryMetrics(m))
	}

	switch cfg.Cache.Backend {
	case config.CacheNone:
		return cache.None{}, func() {}, nil
	case config.CacheRedis, config.CacheTiered:
		rc, err := platformredis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		checks["redis"] = rc.Health
		closeFn := func() { _ = rc.Close() }

		remote := cache.NewRedis(rc.Client, cfg.Cache.TTL,
			cache.WithRedisLogger(log),
			cache.WithRedisMetrics(m),
		)
		if cfg.Cache.Backend == config.CacheRedis {
			return remote, closeFn, nil
		}
		return cache.NewTiered(memory(), remote), closeFn, nil
	default:
		return memory(), func() {}, nil
	}
}

func buildPublisher(ctx context.Context, cfg config.Config, log *slog.Logger, reg prometheus.Registerer, checks map[string]handler.Check) (access.Publisher, func(context.Context) error, error) {
	var (
		next     publisher.Publisher = publisher.NewLog(log)
		producer *kafka.Producer
	)

	if cfg.ProduceEvents() {
		p, err := kafka.NewProducer(cfg.Kafka, kafka.WithLogger(log))
		if err != nil {
			return nil, nil, err
		}
		if cfg.Kafka.EnsureTopic {
			if err := p.EnsureTopic(ctx, cfg.Kafka.Topic, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
				_ = p.Close(ctx)
				return nil, nil, err
			}
		}
		checks["kafka"] = p.Health
		next, producer = p, p
	} else {
		log.Warn("no kafka brokers configured, access events are logged only")
	}

	async := publisher.NewAsync(next,
		publisher.WithLogger(log),
		publisher.WithMetrics(publisher.NewMetrics(reg)),
		publisher.WithWorkers(cfg.Events.Workers),
		publisher.WithQueueSize(cfg.Events.QueueSize),
		publisher.WithRetry(cfg.Events.MaxRetries, cfg.Events.RetryInitial, cfg.Events.RetryMax),
	)

	closeFn := func(ctx context.Context) error {
		err := async.Close(ctx)
		if producer != nil {
			err = errors.Join(err, producer.Close(ctx))
		}
		return err
	}
	return async, closeFn, nil
}
