package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/agri-marketplace/internal/auth"
	"github.com/ariefcatur/agri-marketplace/internal/catalog"
	"github.com/ariefcatur/agri-marketplace/internal/config"
	"github.com/ariefcatur/agri-marketplace/internal/httpx"
	kafkax "github.com/ariefcatur/agri-marketplace/internal/kafka"
	"github.com/ariefcatur/agri-marketplace/internal/logging"
	"github.com/ariefcatur/agri-marketplace/internal/memstore"
	"github.com/ariefcatur/agri-marketplace/internal/orders"
	"github.com/ariefcatur/agri-marketplace/internal/postgres"
	"github.com/ariefcatur/agri-marketplace/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := logging.New(cfg.Env, cfg.ServiceName)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		store orders.Store
		cat   catalog.Repository
	)
	switch cfg.StoreDriver {
	case "memory":
		mem := memstore.New(cfg.LockTimeout)
		store, cat = mem, mem.Catalog()
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
		store = &orders.Repo{DB: db, LockTimeout: cfg.LockTimeout}
		cat = &catalog.Repo{DB: db}
	}

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	placed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPlaced, 1024, logger)
	placed.Start()
	changed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChanged, 1024, logger)
	changed.Start()

	authn := auth.NewAuthenticator(cfg.JWTSecret)
	router := httpx.NewRouter(logger)
	(&httpx.CatalogHandler{Repo: cat, Log: logger}).Register(router, authn)
	(&httpx.OrdersHandler{
		Service:       orders.NewService(store, logger),
		Placed:        placed,
		StatusChanged: changed,
		Cache:         &redisx.StatusCache{RDB: rdb},
		Idem:          &redisx.Idempotency{RDB: rdb},
		Log:           logger,
		ServiceName:   cfg.ServiceName,
		Timeout:       cfg.RequestTimeout,
	}).Register(router, authn)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("server exit", zap.Error(err))
	}

	// handlers are done; flush what they queued
	placed.Close()
	changed.Close()
	placed.WaitClosed()
	changed.WaitClosed()
}
