package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	catalogclient "github.com/ddjsphere/craftsmen-marketplace/internal/client/catalog"
	"github.com/ddjsphere/craftsmen-marketplace/internal/config"
	"github.com/ddjsphere/craftsmen-marketplace/internal/event"
	handler "github.com/ddjsphere/craftsmen-marketplace/internal/handler/http"
	"github.com/ddjsphere/craftsmen-marketplace/internal/provider/mock"
	"github.com/ddjsphere/craftsmen-marketplace/internal/repository"
	"github.com/ddjsphere/craftsmen-marketplace/internal/repository/postgres"
	redisrepo "github.com/ddjsphere/craftsmen-marketplace/internal/repository/redis"
	"github.com/ddjsphere/craftsmen-marketplace/internal/service"
	"github.com/ddjsphere/craftsmen-marketplace/migrations"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/database"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/health"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/httpclient"
	pkgkafka "github.com/ddjsphere/craftsmen-marketplace/pkg/kafka"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/middleware"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/tracing"
)

// App wires together all dependencies and runs the marketplace service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	consumer       *pkgkafka.Consumer
	dlq            *pkgkafka.DLQProducer
	reconciler     *service.Reconciler
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.closeStores()
		}
	}()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing())
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	// Initialize PostgreSQL connection pool.
	pgCfg := cfg.Postgres()
	a.pool, err = database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)

	// Run database migrations.
	if err := database.RunMigrations(ctx, a.pool, migrations.FS, logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	if cfg.SlowQueryThreshold > 0 {
		database.SetSlowQueryLogging(cfg.SlowQueryThreshold, logger)
	}

	// Initialize Redis.
	a.redis, err = database.NewRedisClient(ctx, cfg.Redis(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("addr", cfg.Redis().Addr()))

	database.RegisterPoolMetrics(prometheus.DefaultRegisterer, a.pool, a.redis, config.ServiceName)

	// Events. Without Kafka the producer stays nil and publishing is a no-op.
	var publisher pkgkafka.Publisher
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = a.producer
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}
	eventProducer := event.NewProducer(publisher, logger)

	// Build the dependency graph.
	orderRepo := postgres.NewOrderRepository(a.pool)
	paymentRepo := postgres.NewPaymentRepository(a.pool)

	catalog := service.NewCatalogLookup(redisrepo.NewCachedCatalog(
		a.catalogSource(), a.redis, cfg.CatalogCacheTTL, logger,
	))
	cartService := service.NewCartService(redisrepo.NewCartRepository(a.redis, cfg.CartTTL), catalog, eventProducer, logger)
	orderService := service.NewOrderService(orderRepo, eventProducer, logger)
	settlementService := service.NewSettlementService(
		orderRepo, paymentRepo, mock.NewProvider(cfg.MockPaymentLatency), eventProducer, logger, cfg.PaymentTimeout,
	)
	checkoutService := service.NewCheckoutService(
		postgres.NewCheckoutRepository(a.pool),
		redisrepo.NewLockRepository(a.redis),
		cartService, orderService, settlementService, eventProducer, logger, cfg.CheckoutLockTTL,
	)
	a.reconciler = service.NewReconciler(paymentRepo, settlementService, cfg.ReconcileInterval, logger)

	if cfg.KafkaEnabled {
		a.consumer, a.dlq, err = event.NewPaymentConsumer(event.ConsumerConfig{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.KafkaConsumerGroup,
		}, event.NewReconcileHandler(settlementService, logger), a.redis, logger)
		if err != nil {
			return nil, fmt.Errorf("create payment consumer: %w", err)
		}
	}

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return a.pool.Ping(ctx)
	})
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return a.redis.Ping(ctx).Err()
	})
	if a.producer != nil {
		healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return a.producer.Ping(ctx)
		})
	}

	// HTTP router.
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	router := handler.NewRouter(handler.Services{
		Sessions:      service.NewSessionService(redisrepo.NewSessionRepository(a.redis, cfg.SessionTTL), logger),
		Carts:         cartService,
		Orders:        orderService,
		Settlement:    settlementService,
		Checkout:      checkoutService,
		Favorites:     service.NewFavoriteService(postgres.NewFavoriteRepository(a.pool), catalog, logger),
		Subscriptions: service.NewSubscriptionService(postgres.NewSubscriberRepository(a.pool), logger),
	}, healthHandler, handler.RouterConfig{
		ServiceName:    config.ServiceName,
		TokenValidator: middleware.JWTValidator(cfg.JWTSecret, cfg.JWTIssuer),
		CORS:           cors,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		TrustedProxies: cfg.TrustedProxyPrefixes(),
		SessionTTL:     cfg.SessionTTL,
		SecureCookies:  cfg.Environment == "production",
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.PaymentTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ok = true
	return a, nil
}

// catalogSource resolves items from the remote catalog when one is
// configured, otherwise from the local catalog_items table.
func (a *App) catalogSource() repository.CatalogRepository {
	if a.cfg.CatalogBaseURL == "" {
		return postgres.NewCatalogRepository(a.pool)
	}

	cbCfg := httpclient.CircuitBreakerConfig{
		Name:         "catalog",
		MaxRequests:  a.cfg.CBMaxRequests,
		Interval:     a.cfg.CBInterval,
		Timeout:      a.cfg.CBTimeout,
		FailureRatio: a.cfg.CBFailureRatio,
		MinRequests:  a.cfg.CBMinRequests,
	}
	doer := httpclient.NewCircuitBreakerClient(httpclient.New(httpclient.DefaultConfig()), cbCfg, a.logger)
	a.logger.Info("using remote catalog",
		slog.String("base_url", a.cfg.CatalogBaseURL),
		slog.Uint64("cb_min_requests", uint64(cbCfg.MinRequests)),
	)
	return catalogclient.NewClient(a.cfg.CatalogBaseURL, doer)
}

// Run starts the HTTP server, the reconciliation sweep and the payment
// consumer, and blocks until ctx is canceled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.reconciler.Run(gctx)
	})

	if a.consumer != nil {
		g.Go(func() error {
			return a.consumer.Start(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutdown signal received")
		return a.shutdownHTTP()
	})

	err := g.Wait()
	return errors.Join(err, a.Shutdown())
}

func (a *App) shutdownHTTP() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// Shutdown releases everything after the runners have stopped:
// 1. Tracer (flush spans from drained requests)
// 2. Kafka producer and dead-letter producer
// 3. Redis and PostgreSQL
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.dlq != nil {
		if err := a.dlq.Close(); err != nil {
			a.logger.Error("kafka dlq close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.closeStores()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeStores() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
