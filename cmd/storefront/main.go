package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/axel-fz/echostore/internal/cache"
	"github.com/axel-fz/echostore/internal/catalog"
	"github.com/axel-fz/echostore/internal/checkout"
	"github.com/axel-fz/echostore/internal/config"
	h "github.com/axel-fz/echostore/internal/http"
	"github.com/axel-fz/echostore/internal/logger"
	"github.com/axel-fz/echostore/internal/metrics"
	"github.com/axel-fz/echostore/internal/persistence"
	"github.com/axel-fz/echostore/internal/poller"
	"github.com/axel-fz/echostore/internal/repository"
	"github.com/axel-fz/echostore/internal/session"
	"github.com/axel-fz/echostore/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const serviceName = "storefront"

func main() {
	cfg := config.Load()

	log, err := logger.New(serviceName, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("storefront stopped", zap.Error(err))
	}
	log.Info("storefront exited")
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := catalog.NewRepository(cfg.CatalogDBPath)
	if err != nil {
		return err
	}
	defer repo.Close()
	if err := repo.RunMigrations(); err != nil {
		return err
	}
	cat, err := catalog.Load(ctx, repo)
	if err != nil {
		return err
	}
	localizer, err := catalog.LoadLocalizer(ctx, repo)
	if err != nil {
		return err
	}
	log.Info("catalog loaded", zap.Int("products", len(cat.Products())))

	snapshots, closeSnapshots, err := openSnapshotStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSnapshots()
	adapter := persistence.NewAdapter(snapshots, cat, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	srvMetrics := metrics.NewServerMetrics(serviceName, reg)

	breaker := checkout.NewBreaker(checkout.DefaultBreakerSettings(), log)
	newClient := func(sessionID string) *checkout.Client {
		return checkout.NewClient(cfg.CheckoutURL,
			checkout.WithTimeout(cfg.CheckoutTimeout),
			checkout.WithBreaker(breaker),
			checkout.WithLogger(log),
			checkout.WithReference(sessionID))
	}
	registry := session.NewRegistry(adapter, newClient, log,
		session.WithIdleTTL(cfg.SessionIdleTTL),
		session.WithEventHook(func(_ string, e store.Event) {
			srvMetrics.CartMutations.WithLabelValues(string(e.Kind)).Inc()
		}))
	defer registry.Close()
	srvMetrics.RegisterGauge("active_sessions", "Sessions resident in memory.", func() float64 {
		return float64(registry.Len())
	})

	events := h.NewEventsHandler(registry, localizer, log)
	router := h.NewRouter(h.RouterConfig{
		Cart:               h.NewCartHandler(registry, cat, localizer, log, 5*time.Second),
		Checkout:           h.NewCheckoutHandler(registry, localizer, srvMetrics, log),
		Events:             events,
		Products:           h.NewProductHandler(cat, localizer),
		Metrics:            srvMetrics,
		Logger:             log,
		RequestTimeout:     cfg.CheckoutTimeout + 5*time.Second,
		MaxRequestBodySize: 1 << 20, // 1MB
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      otelhttp.NewHandler(router, serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.CheckoutTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	srv.RegisterOnShutdown(events.Shutdown)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("storefront starting", zap.Int("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if len(cfg.KafkaBrokers) > 0 {
		consumer := poller.NewPoller(registry, log, cfg.KafkaBrokers...)
		g.Go(func() error {
			defer func() {
				if err := consumer.Close(); err != nil {
					log.Warn("consumer close failed", zap.Error(err))
				}
			}()
			return consumer.Run(gctx)
		})
	} else {
		log.Info("KAFKA_BROKERS not set, checkout completion consumer disabled")
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// openSnapshotStore connects the configured cart snapshot backend.
func openSnapshotStore(ctx context.Context, cfg config.Config, log *zap.Logger) (persistence.SnapshotStore, func(), error) {
	switch cfg.PersistenceBackend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			// snapshots are best effort; carts still work in memory
			log.Warn("redis unreachable, carts will not survive restarts until it recovers",
				zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		return cache.NewRedisStore(client, cache.DefaultTTL), func() { client.Close() }, nil

	case config.BackendMongo:
		db, err := repository.Connect(ctx, repository.MongoOptions{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDBName,
			AppName:  serviceName,
		})
		if err != nil {
			return nil, nil, err
		}
		mongoStore := repository.NewMongoStore(db)
		if err := mongoStore.CreateIndexes(ctx); err != nil {
			log.Warn("failed to create cart indexes", zap.Error(err))
		}
		closeFn := func() {
			if err := repository.Disconnect(db, 5*time.Second); err != nil {
				log.Warn("mongo disconnect failed", zap.Error(err))
			}
		}
		return mongoStore, closeFn, nil

	default:
		return nil, nil, fmt.Errorf("unknown persistence backend %q", cfg.PersistenceBackend)
	}
}
