package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

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

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("sweep-worker starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.SweepInterval),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	var locker lock.Locker = lock.NewKeyMutex()
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
		logger.Info("connected to Redis")
	}

	bookingSvc := booking.NewService(booking.NewPgRepository(pgPool), locker, cfg, logger)
	queueSvc := queue.NewService(queue.NewPgRepository(pgPool), locker, logger)
	inventorySvc := inventory.NewService(inventory.NewPgRepository(pgPool), locker, logger)
	sched := scheduler.New(bookingSvc, queueSvc, inventorySvc, logger,
		notify.NewPgEventStore(pgPool),
		notify.NewLogDispatcher(logger),
	)

	// Run once at startup
	runOnce(rootCtx, sched, cfg, logger)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping sweep worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, sched, cfg, logger)
		}
	}
}

func runOnce(ctx context.Context, sched *scheduler.Scheduler, cfg config.Config, logger *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	now := time.Now()

	noShows, err := sched.MarkNoShows(runCtx, now)
	if err != nil {
		logger.Error("no-show sweep error", zap.Error(err))
	}

	expired, err := sched.SweepReservations(runCtx, now.Add(-cfg.ReservationTTL))
	if err != nil {
		logger.Error("reservation sweep error", zap.Error(err))
	}

	expiring, err := sched.AlertExpiringStock(runCtx, now.Add(cfg.ExpiryWindow))
	if err != nil {
		logger.Error("stock expiry sweep error", zap.Error(err))
	}

	logger.Info("sweep run complete",
		zap.Int("no_shows_marked", noShows),
		zap.Int("reservations_expired", expired),
		zap.Int("batches_expiring_soon", expiring),
		zap.Duration("took", time.Since(start)),
	)
}
