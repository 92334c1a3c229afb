package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"membersync/internal/catalog"
	"membersync/internal/config"
	"membersync/internal/constants"
	"membersync/internal/container"
	"membersync/internal/logger"
	"membersync/internal/management"
	"membersync/internal/membership"
	"membersync/pkg/bootstrap"
	"membersync/pkg/circuitbreaker"
	"membersync/pkg/health"
	"membersync/pkg/logging"
	"membersync/pkg/metrics"
	"membersync/pkg/middleware"
	"membersync/pkg/migrations"
	"membersync/pkg/ratelimit"
	"membersync/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	conns *bootstrap.Connections

	productBreaker  *circuitbreaker.Wrapper
	customerBreaker *circuitbreaker.Wrapper

	registry  *membership.Registry
	scheduler *membership.Scheduler
	notifier  *membership.AsyncNotifier
	trigger   *membership.TriggerHandler
	service   management.Service
	limiter   *ratelimit.Limiter

	router         *gin.Engine
	server         *http.Server
	tracerProvider *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{Base: bootstrap.NewBase(cfg, log)}
}

func (a *App) Initialize(ctx context.Context) error {
	initCtx, cancel := context.WithTimeout(ctx, constants.InitTimeout)
	defer cancel()

	tp, err := tracing.Init(a.Config.Tracing, constants.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterAll()

	conns, err := bootstrap.OpenConnections(initCtx, a.Config.Database, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}
	a.conns = conns
	if conns.Redis == nil {
		a.Logger.Warnw("Redis not configured, store refreshes run without a distributed lock")
	}

	if a.Config.Database.RunMigrations {
		if err := migrate(initCtx, conns, a.Logger); err != nil {
			return err
		}
	}

	if err := a.InitBroker(constants.ServiceName); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	a.initMembership()
	a.initRouter()
	a.initServer()

	return nil
}

func (a *App) initMembership() {
	containers := container.NewRepository(a.conns.MongoDB)
	collectionMembers := membership.NewPostgresStore(a.conns.Postgres, membership.CollectionProducts)
	segmentMembers := membership.NewPostgresStore(a.conns.Postgres, membership.SegmentCustomers)

	var opts []membership.Option
	if a.conns.Redis != nil {
		opts = append(opts, membership.WithLocker(membership.NewRedisLocker(a.conns.Redis), a.Config.Sync.LockTTL()))
	}
	if a.Producer != nil {
		topic := a.Config.Broker.Kafka.EventsTopic
		if topic == "" {
			topic = constants.DefaultEventsTopic
		}
		a.notifier = membership.NewAsyncNotifier(
			membership.NewKafkaPublisher(a.Producer, topic),
			a.Config.Sync.NotifyBuffer,
			a.Logger,
		)
		opts = append(opts, membership.WithNotifier(a.notifier))
	}

	if a.Config.CircuitBreaker.Enabled {
		a.productBreaker = circuitbreaker.NewWrapper(circuitbreaker.FromSettings("catalog_products", a.Config.CircuitBreaker))
		a.customerBreaker = circuitbreaker.NewWrapper(circuitbreaker.FromSettings("catalog_customers", a.Config.CircuitBreaker))
	}

	collections := membership.NewSynchronizer(
		container.KindCollection,
		catalog.NewProductEngine(a.Logger),
		membership.NewCircuitBreakerSource[catalog.Product](catalog.NewProductRepository(a.conns.Postgres), a.productBreaker),
		collectionMembers,
		containers,
		a.Logger,
		opts...,
	)
	segments := membership.NewSynchronizer(
		container.KindSegment,
		catalog.NewCustomerEngine(a.Logger),
		membership.NewCircuitBreakerSource[catalog.Customer](catalog.NewCustomerRepository(a.conns.Postgres), a.customerBreaker),
		segmentMembers,
		containers,
		a.Logger,
		opts...,
	)
	a.registry = membership.NewRegistry(collections, segments)

	a.scheduler = membership.NewScheduler(
		catalog.NewStoreRepository(a.conns.Postgres),
		a.registry,
		membership.SchedulerConfig{
			Interval:    a.Config.Sync.Schedule.Interval(),
			Jitter:      a.Config.Sync.Schedule.Jitter(),
			Concurrency: a.Config.Sync.StoreConcurrency,
		},
		a.Logger,
	)
	a.trigger = membership.NewTriggerHandler(a.registry, containers, a.Logger)

	a.service = management.NewService(
		containers,
		map[container.Kind]membership.MembershipStore{
			container.KindCollection: collectionMembers,
			container.KindSegment:    segmentMembers,
		},
		a.registry,
		a.Logger,
	)
}

func (a *App) initRouter() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(constants.ServiceName))
	}

	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.LoggerMiddleware(a.Logger))

	var storeMiddleware []gin.HandlerFunc
	if a.Config.Management.RateLimit.Enabled {
		rateLimitConfig := ratelimit.FromSettings(a.Config.Management.RateLimit)
		a.limiter = ratelimit.NewLimiter(rateLimitConfig)
		storeMiddleware = append(storeMiddleware, a.limiter.Middleware())
		a.Logger.Infow("Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	management.NewHandler(a.service, a.Logger).RegisterRoutes(router, storeMiddleware...)

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewPostgreSQLChecker(a.conns.Postgres))
	healthRegistry.Register(health.NewMongoDBChecker(a.conns.Mongo))
	if a.conns.Redis != nil {
		healthRegistry.RegisterOptional(health.NewRedisChecker(a.conns.Redis))
	}
	for _, cb := range []*circuitbreaker.Wrapper{a.productBreaker, a.customerBreaker} {
		if cb != nil {
			healthRegistry.RegisterOptional(health.NewBreakerChecker(cb.Name(), cb.IsOpen))
		}
	}

	router.GET("/health", health.Handler(healthRegistry))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.router = router
}

func (a *App) initServer() {
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.Config.Server.ReadTimeout(),
		WriteTimeout: a.Config.Server.WriteTimeout(),
	}
}

// RefreshStore runs a one-shot refresh through the same path as the API.
// Membership events raised by it are flushed before it returns.
func (a *App) RefreshStore(ctx context.Context, storeID, kind string) ([]membership.Report, error) {
	if a.notifier != nil {
		notifyCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = a.notifier.Run(notifyCtx)
		}()
		defer func() {
			stop()
			<-done
		}()
	}
	return a.service.RefreshStore(logging.WithStoreID(ctx, storeID), storeID, kind)
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	if a.Config.Sync.Schedule.Enabled {
		g.Go(func() error {
			return ignoreCanceled(a.scheduler.Start(gCtx))
		})
	}

	if a.notifier != nil {
		g.Go(func() error {
			return a.notifier.Run(gCtx)
		})
	}

	if a.limiter != nil {
		g.Go(func() error {
			return ignoreCanceled(a.limiter.Run(gCtx))
		})
	}

	if a.Consumer != nil {
		topic := a.Config.Broker.Kafka.TriggerTopic
		if topic == "" {
			topic = constants.DefaultTriggerTopic
		}
		g.Go(func() error {
			a.Logger.InfowCtx(gCtx, "Starting trigger consumer", "topic", topic)
			return ignoreCanceled(a.Consumer.Consume(gCtx, topic, a.trigger.Handle))
		})
	}

	err := g.Wait()
	if shutdownErr := a.Shutdown(context.Background()); shutdownErr != nil {
		err = stderrors.Join(err, shutdownErr)
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	return a.Base.Shutdown(ctx, func(ctx context.Context) []error {
		var errs []error
		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}
		if a.conns != nil {
			errs = append(errs, a.conns.Close(ctx)...)
		}
		return errs
	})
}

func ignoreCanceled(err error) error {
	if stderrors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runMigrations backs the migrate command.
func runMigrations(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	dbCfg := cfg.Database
	dbCfg.Redis = config.RedisConfig{}
	conns, err := bootstrap.OpenConnections(ctx, dbCfg, log)
	if err != nil {
		return err
	}
	defer conns.Close(context.WithoutCancel(ctx))

	return migrate(ctx, conns, log)
}

func migrate(ctx context.Context, conns *bootstrap.Connections, log logger.Logger) error {
	if err := migrations.MigratePostgres(conns.Postgres); err != nil {
		return err
	}
	version, dirty, err := migrations.PostgresVersion(conns.Postgres)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if err := migrations.EnsureContainerIndexes(ctx, conns.MongoDB); err != nil {
		return fmt.Errorf("failed to ensure container indexes: %w", err)
	}
	log.InfowCtx(ctx, "Migrations applied", "postgres_version", version, "dirty", dirty)
	return nil
}
