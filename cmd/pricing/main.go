package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/wyfcoding/optionspricing/internal/pricing/application"
	"github.com/wyfcoding/optionspricing/internal/pricing/infrastructure/messaging"
	"github.com/wyfcoding/optionspricing/internal/pricing/infrastructure/persistence"
	"github.com/wyfcoding/optionspricing/internal/pricing/infrastructure/persistence/mysql"
	rediscache "github.com/wyfcoding/optionspricing/internal/pricing/infrastructure/persistence/redis"
	grpchandler "github.com/wyfcoding/optionspricing/internal/pricing/interfaces/grpc"
	httphandler "github.com/wyfcoding/optionspricing/internal/pricing/interfaces/http"
	"github.com/wyfcoding/optionspricing/pkg/cache"
	"github.com/wyfcoding/optionspricing/pkg/config"
	"github.com/wyfcoding/optionspricing/pkg/db"
	"github.com/wyfcoding/optionspricing/pkg/logger"
	"github.com/wyfcoding/optionspricing/pkg/metrics"
	"github.com/wyfcoding/optionspricing/pkg/middleware"
	"github.com/wyfcoding/optionspricing/pkg/mq"
	"github.com/wyfcoding/optionspricing/pkg/ratelimit"
	"golang.org/x/sync/errgroup"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const BootstrapName = "pricing"

func main() {
	configPath := flag.String("config", config.GetEnv("APP_CONFIG", "configs/pricing/config.toml"), "config file path")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", BootstrapName, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadWithDefaults(configPath)
	if err != nil {
		return err
	}
	if err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger.Info(ctx, "starting service", "service", cfg.ServiceName, "version", cfg.Version, "env", cfg.Environment)

	m := metrics.New(cfg.ServiceName)
	if err := m.Register(); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	collector := metrics.NewCollector(m)

	database, err := db.Init(cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()
	if err := database.Migrate(&mysql.PricingResultModel{}, &messaging.OutboxMessage{}); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	rdb, err := cache.NewClient(cfg.Redis)
	if err != nil {
		return err
	}
	redisCache := cache.New(rdb)
	defer func() { _ = redisCache.Close() }()

	producer := mq.NewProducer(cfg.Kafka)
	defer func() { _ = producer.Close() }()

	engine, err := application.NewEngine(cfg.Pricing)
	if err != nil {
		return err
	}
	repo := persistence.NewCachedRepository(
		mysql.NewPricingRepository(database.DB),
		rediscache.NewPricingResultCache(redisCache, cfg.Pricing.CacheTTLDuration()),
		collector,
	)
	app := application.NewPricingService(engine, repo, messaging.NewOutboxEventPublisher(database.DB), collector, cfg.Pricing.Workers)
	limiter := ratelimit.NewRedisRateLimiter(rdb)

	httpServer := newHTTPServer(cfg, app, collector, limiter, database, rdb)
	grpcServer, health := grpchandler.NewServer(grpchandler.NewHandler(app), grpchandler.ServerOptions{
		Config:    cfg.GRPC,
		RateLimit: cfg.RateLimit,
		Limiter:   limiter,
		Collector: collector,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info(gctx, "starting HTTP server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr())
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		logger.Info(gctx, "starting gRPC server", "addr", cfg.GRPC.Addr())
		return grpcServer.Serve(lis)
	})

	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return metrics.StartHTTPServer(gctx, fmt.Sprintf(":%d", cfg.Metrics.Port), cfg.Metrics.Path, m)
		})
	}

	if cfg.Outbox.Enabled {
		relay := messaging.NewRelay(database.DB, producer, collector, cfg.Outbox)
		g.Go(func() error { return relay.Run(gctx) })
	}

	if cfg.Pricing.RetentionDays > 0 {
		retention := time.Duration(cfg.Pricing.RetentionDays) * 24 * time.Hour
		g.Go(func() error {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					n, err := app.CleanupResults(gctx, retention)
					if err != nil {
						logger.Error(gctx, "failed to cleanup pricing results", "error", err)
						continue
					}
					if n > 0 {
						logger.Info(gctx, "cleaned up pricing results", "count", n)
					}
				}
			}
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info(context.Background(), "shutting down service")
		health.SetServingStatus(grpchandler.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error(shutdownCtx, "http server shutdown failed", "error", err)
		}

		done := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-shutdownCtx.Done():
			grpcServer.Stop()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error(context.Background(), "service exited with error", "error", err)
		return err
	}
	logger.Info(context.Background(), "service stopped")
	return nil
}

func newHTTPServer(cfg *config.Config, app *application.PricingService, collector metrics.Collector, limiter ratelimit.RateLimiter, database *db.DB, rdb redis.UniversalClient) *http.Server {
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	e := gin.New()
	e.Use(
		middleware.GinRecovery(),
		middleware.GinTrace(),
		middleware.GinLogging(collector),
		middleware.GinRateLimit(limiter, cfg.RateLimit),
	)

	httphandler.NewPricingHandler(app).RegisterRoutes(e)
	e.GET("/health", func(c *gin.Context) {
		status, code := "healthy", http.StatusOK
		checks := gin.H{"database": "ok", "redis": "ok"}
		if sqlDB, err := database.DB.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			checks["database"], status, code = "unavailable", "degraded", http.StatusServiceUnavailable
		}
		if err := rdb.Ping(c.Request.Context()).Err(); err != nil {
			checks["redis"], status, code = "unavailable", "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status,
			"service":   BootstrapName,
			"checks":    checks,
			"timestamp": time.Now().Unix(),
		})
	})

	return &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}
}
