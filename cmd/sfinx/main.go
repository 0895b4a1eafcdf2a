package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/api/admin"
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/api/user"
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/config"
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/contest"
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/database"
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/pubsub"
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/queue"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var Version = "dev-build"

func main() {

	fmt.Fprintf(os.Stderr, "Sfinx Contest Core %s\n\n", Version)

	// config
	var configPath string
	flag.StringVar(&configPath, "c", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// logger
	var logger *zap.Logger
	if cfg.Logger.Level == "debug" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	// database
	db, err := database.Init(cfg.Storage.Database)
	if err != nil {
		zap.S().Fatalf("failed to initialize database: %v", err)
	}
	zap.S().Info("database initialized successfully")

	// job queue
	queueOpts := queue.Options{
		Workers:      cfg.Queue.Workers,
		PollInterval: time.Duration(cfg.Queue.PollIntervalMs) * time.Millisecond,
		MaxAttempts:  cfg.Queue.MaxAttempts,
		Backoff:      time.Duration(cfg.Queue.BackoffMs) * time.Millisecond,
	}
	var jobQueue queue.Queue
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			zap.S().Fatalf("failed to connect to redis: %v", err)
		}
		jobQueue = queue.NewRedis(rdb, queueOpts)
		zap.S().Infof("using redis job queue at %s", cfg.Redis.Addr)
	} else {
		jobQueue = queue.NewMemory(queueOpts)
		zap.S().Warn("using in-memory job queue, pending jobs will not survive a restart")
	}
	defer jobQueue.Close()

	// domain services, wired explicitly
	broker := pubsub.New()
	scheduler := contest.NewScheduler(db, jobQueue)
	lifecycle := contest.NewService(db, scheduler, broker)
	aggregator := contest.NewAggregator(db, broker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Re-derive lifecycle jobs for contests that were scheduled or running
	// when the previous process stopped.
	if err := scheduler.Recover(ctx); err != nil {
		zap.S().Fatalf("failed to recover contest schedules: %v", err)
	}

	jobQueue.Start(ctx, lifecycle.HandleJob)
	zap.S().Info("lifecycle job workers started")

	// API routers
	userEngine := user.NewUserRouter(cfg, db, lifecycle, broker)
	adminEngine := admin.NewAdminRouter(cfg, db, lifecycle, aggregator)

	// start servers
	go func() {
		zap.S().Infof("starting user server at %s", cfg.Listen)
		if err := userEngine.Run(cfg.Listen); err != nil {
			zap.S().Fatalf("failed to start user server: %v", err)
		}
	}()

	if cfg.Admin.Enabled {
		go func() {
			zap.S().Infof("starting admin server at %s", cfg.Admin.Listen)
			if err := adminEngine.Run(cfg.Admin.Listen); err != nil {
				zap.S().Fatalf("failed to start admin server: %v", err)
			}
		}()
	}

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.S().Info("shutting down server...")
}
