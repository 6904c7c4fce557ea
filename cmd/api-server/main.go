package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/medibook/appointment-booking/internal/admin"
	"github.com/medibook/appointment-booking/internal/api"
	"github.com/medibook/appointment-booking/internal/appointment"
	"github.com/medibook/appointment-booking/internal/config"
	"github.com/medibook/appointment-booking/internal/db"
	redisclient "github.com/medibook/appointment-booking/internal/redis"
	"github.com/medibook/appointment-booking/internal/settings"
	"github.com/medibook/appointment-booking/internal/user"
	"github.com/medibook/appointment-booking/pkg/logging"
)

const version = "0.1.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running in env=%s http_port=%s", cfg.Env, cfg.HTTPPort)

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

	// Connect Redis
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

	userRepo := user.NewPgRepository(pgPool)
	userSvc := user.NewService(userRepo, logger)

	settingsStore := settings.NewCachedStore(settings.NewPgStore(pgPool), rdb, cfg.SettingsCacheTTL, logger)

	apptRepo := appointment.NewPgRepository(pgPool)
	locker := redisclient.NewRedisBookingLocker(rdb, cfg.LockTTL)
	apptSvc := appointment.NewService(apptRepo, userRepo, settingsStore, locker, logger)

	stats := admin.NewStatsRepository(pgPool)

	router := api.NewRouter(api.RouterConfig{
		Appointments: apptSvc,
		Users:        userSvc,
		UserRepo:     userRepo,
		Settings:     settingsStore,
		Stats:        stats,
		PgPool:       pgPool,
		Redis:        rdb,
		Logger:       logger,
		Env:          cfg.Env,
		Version:      version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Fatalf("http server error: %v", err)
	case <-rootCtx.Done():
	}

	log.Println("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
