package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/carehub/clinic-ops/internal/api"
	"github.com/carehub/clinic-ops/internal/booking"
	"github.com/carehub/clinic-ops/internal/config"
	"github.com/carehub/clinic-ops/internal/db"
	"github.com/carehub/clinic-ops/internal/inventory"
	"github.com/carehub/clinic-ops/internal/lock"
	"github.com/carehub/clinic-ops/internal/notify"
	"github.com/carehub/clinic-ops/internal/queue"
	redisclient "github.com/carehub/clinic-ops/internal/redis"
	"github.com/carehub/clinic-ops/internal/scheduler"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{
		MaxConns:       int32(cfg.PgMaxConns),
		MinConns:       int32(cfg.PgMinConns),
		ConnectTimeout: cfg.ConnectTimeout,
	})
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	// Locking: Redis when configured, in-process otherwise.
	var locker lock.Locker = lock.NewKeyMutex()
	routerCfg := api.RouterConfig{
		PgPool:  pgPool,
		Logger:  logger,
		Env:     cfg.Env,
		Version: version,
	}
	if cfg.RedisAddr != "" {
		rdb, err := redisclient.NewRedisClient(redisclient.Options{
			Addr:           cfg.RedisAddr,
			Username:       cfg.RedisUsername,
			Password:       cfg.RedisPassword,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.ConnectTimeout,
		})
		if err != nil {
			logger.Fatal("redis connection error", zap.Error(err))
		}
		defer func() { _ = rdb.Close() }()
		locker = lock.NewRedisLocker(rdb, cfg.LockTTL)
		routerCfg.Redis = rdb
		logger.Info("connected to Redis")
	} else {
		logger.Warn("REDIS_ADDR not set, using in-process locking")
	}

	// Notification dispatch: always the audit trail; AMQP when configured.
	dispatchers := []notify.Dispatcher{notify.NewPgEventStore(pgPool)}
	if cfg.AMQPURL != "" {
		conn, err := amqp.Dial(cfg.AMQPURL)
		if err != nil {
			logger.Fatal("amqp connection error", zap.Error(err))
		}
		defer func() { _ = conn.Close() }()

		amqpDispatcher, err := notify.NewAMQPDispatcher(conn, logger)
		if err != nil {
			logger.Fatal("amqp dispatcher error", zap.Error(err))
		}
		dispatchers = append(dispatchers, amqpDispatcher)
		logger.Info("connected to AMQP broker")
	} else {
		dispatchers = append(dispatchers, notify.NewLogDispatcher(logger))
	}

	bookingSvc := booking.NewService(booking.NewPgRepository(pgPool), locker, cfg, logger)
	queueSvc := queue.NewService(queue.NewPgRepository(pgPool), locker, logger)
	inventorySvc := inventory.NewService(inventory.NewPgRepository(pgPool), locker, logger)
	sched := scheduler.New(bookingSvc, queueSvc, inventorySvc, logger, dispatchers...)

	routerCfg.Scheduler = sched
	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: api.NewRouter(routerCfg),
	}

	go func() {
		logger.Info("listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "prod" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
