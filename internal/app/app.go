package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/utafrali/storefront/internal/backend"
	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/event"
	handler "github.com/utafrali/storefront/internal/handler/http"
	"github.com/utafrali/storefront/internal/session"
	"github.com/utafrali/storefront/internal/storage"
	"github.com/utafrali/storefront/internal/storage/memory"
	redisstore "github.com/utafrali/storefront/internal/storage/redis"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httpclient"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/tracing"
)

const (
	serviceName   = "storefront"
	evictInterval = time.Minute
)

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	provider       storage.Provider
	producer       *pkgkafka.Producer
	hub            *session.Hub
	tracerShutdown func(context.Context) error
	httpServer     *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tracerCfg := tracing.DefaultConfig(serviceName)
	tracerCfg.Environment = cfg.Environment
	tracerCfg.OTLPEndpoint = cfg.OTELEndpoint
	tracerCfg.SampleRate = cfg.OTELSampleRate
	tracerCfg.Enabled = cfg.OTELEnabled
	tracerShutdown, err := tracing.InitTracer(ctx, tracerCfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	provider, err := newProvider(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// Session events go to Kafka only when enabled.
	var (
		producer  *pkgkafka.Producer
		publisher session.Publisher = session.NopPublisher{}
	)
	if cfg.KafkaEnabled {
		producer = pkgkafka.NewProducer(producerConfig(cfg), logger)
		publisher = event.NewProducer(producer, cfg.TaxRate, logger)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.Brokers()))
	}

	hub := session.NewHub(provider, publisher, logger)

	// Backend client: retries inside, circuit breaker outside.
	clientCfg := httpclient.DefaultConfig()
	clientCfg.Timeout = time.Duration(cfg.BackendTimeoutSeconds) * time.Second
	clientCfg.MaxRetries = cfg.BackendMaxRetries
	cbCfg := httpclient.DefaultCircuitBreakerConfig("backend")
	cbCfg.MaxRequests = cfg.CBMaxRequests
	cbCfg.Interval = time.Duration(cfg.CBInterval) * time.Second
	cbCfg.Timeout = time.Duration(cfg.CBTimeout) * time.Second
	cbCfg.FailureRatio = cfg.CBFailureRatio
	cbCfg.MinRequests = cfg.CBMinRequests
	doer := httpclient.NewCircuitBreakerClient(httpclient.New(clientCfg), cbCfg, logger)
	backendClient := backend.NewClient(doer, cfg.BackendURL, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("storage", provider.Ping)
	if producer != nil {
		healthHandler.Register("kafka", producer.Ping)
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins

	router := handler.NewRouter(hub, backendClient, backendClient, healthHandler, handler.RouterConfig{
		TaxRate: cfg.TaxRate,
		CORS:    corsCfg,
	}, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		provider:       provider,
		producer:       producer,
		hub:            hub,
		tracerShutdown: tracerShutdown,
		httpServer:     httpServer,
	}, nil
}

// producerConfig builds an async writer so session transitions never wait
// on the brokers.
func producerConfig(cfg *config.Config) pkgkafka.ProducerConfig {
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.Brokers())
	kafkaCfg.Async = true
	return kafkaCfg
}

func newProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Provider, error) {
	if cfg.StorageDriver == config.StorageMemory {
		logger.Info("using in-memory session storage", slog.Int("quota_bytes", cfg.StorageQuotaBytes))
		return memory.NewProvider(cfg.StorageQuotaBytes), nil
	}

	redisCfg := database.DefaultRedisConfig()
	redisCfg.Addr = cfg.RedisAddr
	redisCfg.Password = cfg.RedisPass
	redisCfg.DB = cfg.RedisDB

	rdb, err := database.NewRedisClient(ctx, redisCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	database.RegisterPoolMetrics(rdb, serviceName)
	database.SetSlowCommandLogging(time.Duration(cfg.SlowCommandThresholdMs)*time.Millisecond, logger)

	logger.Info("connected to Redis",
		slog.String("addr", cfg.RedisAddr),
		slog.Int("db", cfg.RedisDB),
	)
	return redisstore.NewProvider(rdb, time.Duration(cfg.SessionTTLHours)*time.Hour, logger), nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if a.cfg.TabIdleMinutes > 0 {
		go a.evictIdleTabs(ctx, time.Duration(a.cfg.TabIdleMinutes)*time.Minute)
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

func (a *App) evictIdleTabs(ctx context.Context, maxIdle time.Duration) {
	ticker := time.NewTicker(evictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.hub.EvictIdle(maxIdle); n > 0 {
				a.logger.Info("evicted idle tabs", slog.Int("count", n), slog.Int("open", a.hub.Len()))
			}
		}
	}
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	// Unsubscribe every open tab before the storage goes away.
	a.hub.Shutdown()

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}

	if err := a.provider.Close(); err != nil {
		a.logger.Error("storage close error", slog.String("error", err.Error()))
	}

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
