package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/medibook/appointment-booking/internal/appointment"
	"github.com/medibook/appointment-booking/internal/config"
	"github.com/medibook/appointment-booking/internal/db"
	redisclient "github.com/medibook/appointment-booking/internal/redis"
	"github.com/medibook/appointment-booking/internal/settings"
	"github.com/medibook/appointment-booking/internal/user"
	"github.com/medibook/appointment-booking/pkg/logging"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("reminder-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running reminder worker in env=%s interval=%s window=%s", cfg.Env, cfg.WorkerInterval, cfg.ReminderWindow)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(redisclient.ClientOptions{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		PoolSize: cfg.RedisPoolSize,
		MinIdle:  cfg.RedisMinIdle,
	})
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}()
	log.Println("connected to Redis")

	logger := logging.New(cfg.LogLevel)

	repo := appointment.NewPgRepository(pgPool)
	userRepo := user.NewPgRepository(pgPool)
	settingsStore := settings.NewCachedStore(settings.NewPgStore(pgPool), rdb, cfg.SettingsCacheTTL, logger)
	locker := redisclient.NewRedisBookingLocker(rdb, cfg.LockTTL)
	svc := appointment.NewService(repo, userRepo, settingsStore, locker, logger)

	// Run once at startup
	runOnce(rootCtx, svc, cfg.ReminderWindow)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Println("shutdown signal received, stopping reminder worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, cfg.ReminderWindow)
		}
	}
}

func runOnce(ctx context.Context, svc *appointment.Service, window time.Duration) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	sent, err := svc.SendDueReminders(runCtx, window)
	if err != nil {
		log.Printf("reminder run error: %v", err)
		return
	}
	log.Printf("reminder run complete: sent=%d in %s", sent, time.Since(start))
}
