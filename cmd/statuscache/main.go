package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/agri-marketplace/internal/config"
	kafkax "github.com/ariefcatur/agri-marketplace/internal/kafka"
	"github.com/ariefcatur/agri-marketplace/internal/logging"
	"github.com/ariefcatur/agri-marketplace/internal/orders"
	"github.com/ariefcatur/agri-marketplace/internal/redisx"
	"github.com/ariefcatur/agri-marketplace/internal/statuscache"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := logging.New(cfg.Env, cfg.ServiceName+"-statuscache")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &statuscache.Service{
		Cache: &redisx.StatusCache{RDB: rdb},
		Dedup: &redisx.Dedup{RDB: rdb, Service: "statuscache"},
		Log:   logger,
	}

	topics := []string{orders.TopicOrderPlaced, orders.TopicOrderStatusChanged}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.StatusCacheGroup, topics, cfg.StatusCacheWorkers, logger)

	logger.Info("statuscache consumer started",
		zap.String("group", cfg.StatusCacheGroup),
		zap.Strings("topics", topics),
		zap.Int("workers", cfg.StatusCacheWorkers))
	if err := cons.Start(ctx, svc.HandleEvent); err != nil {
		logger.Error("consumer exit", zap.Error(err))
		return
	}
	logger.Info("statuscache consumer stopped")
}
