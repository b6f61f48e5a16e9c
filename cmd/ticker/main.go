package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"main/internal/application/service/mockfeed"
	tickersvc "main/internal/application/service/ticker"
	"main/internal/config"
	"main/internal/domain/interfaces"
	"main/internal/infrastructure/bus"
	"main/internal/infrastructure/cache"
	infrainstruments "main/internal/infrastructure/instruments"
	"main/internal/infrastructure/publish"
	"main/internal/infrastructure/subscriptions"
	"main/internal/infrastructure/upstream"
	infrahttp "main/internal/interfaces/http"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file found, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	registry := infrainstruments.NewRegistryWithPool(pool)
	store := subscriptions.NewStoreWithPool(pool)

	rabbitConn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		logger.Fatalf("connect rabbitmq: %v", err)
	}
	defer rabbitConn.Close()

	busPublisher, err := bus.NewPublisher(rabbitConn, cfg.RabbitMQ, logger)
	if err != nil {
		logger.Fatalf("init bus publisher: %v", err)
	}
	defer busPublisher.Close()

	sinks := []interfaces.MarketPublisher{busPublisher}

	var cacheStore *cache.Store
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatalf("connect redis: %v", err)
		}
		defer redisClient.Close()

		cacheStore = cache.NewStore(redisClient, time.Duration(cfg.Cache.TTLSeconds)*time.Second, logger)
		sinks = append(sinks, cacheStore)
	}

	publisher := publish.NewFanout(sinks...)

	processor := tickersvc.NewProcessor(tickersvc.ProcessorConfig{
		RiskFreeRate:      cfg.Ticker.RiskFreeRate,
		DefaultVolatility: cfg.Ticker.DefaultVolatility,
	}, publisher, logger)

	validator := tickersvc.NewValidator(tickersvc.ValidatorConfig{
		Enabled:            cfg.Ticker.ValidatorEnabled,
		Strict:             cfg.Ticker.ValidatorStrict,
		MaxUnderlyingPrice: cfg.Ticker.MaxUnderlyingPrice,
		MaxOptionPrice:     cfg.Ticker.MaxOptionPrice,
		MaxOpenInterest:    cfg.Ticker.MaxOpenInterest,
	})

	mock := mockfeed.NewGenerator(mockfeed.Config{
		UnderlyingToken:   cfg.Ticker.UnderlyingToken,
		UnderlyingSymbol:  cfg.Ticker.UnderlyingSymbol,
		BasePrice:         cfg.Ticker.MockBasePrice,
		BaseVolume:        cfg.Ticker.MockBaseVolume,
		RiskFreeRate:      cfg.Ticker.RiskFreeRate,
		DefaultVolatility: cfg.Ticker.DefaultVolatility,
	}, logger)

	mode := func(string) tickersvc.SourceMode { return tickersvc.SourceMode(cfg.Ticker.SourceMode) }

	// The concrete broker transport plugs in here once credentials are
	// configured; without one, every account streams simulated data.
	sessions := upstream.NewOfflineFactory(logger)

	orchestrator := tickersvc.NewOrchestrator(tickersvc.OrchestratorConfig{
		AccountCapacity: cfg.Ticker.AccountCapacity,
		MockInterval:    cfg.Ticker.MockTickInterval,
		ReadTimeout:     cfg.Ticker.ReadTimeout,
	}, sessions, registry, store, processor, validator, mock, mode, logger)

	desiredTokens, err := store.ListDesired(ctx)
	if err != nil {
		logger.Fatalf("load desired subscriptions: %v", err)
	}
	if !containsToken(desiredTokens, cfg.Ticker.UnderlyingToken) {
		desiredTokens = append([]int64{cfg.Ticker.UnderlyingToken}, desiredTokens...)
	}
	desired, err := registry.FetchActiveInstruments(ctx, desiredTokens)
	if err != nil {
		logger.Fatalf("resolve desired instruments: %v", err)
	}

	if err := orchestrator.Start(ctx, cfg.Ticker.Accounts, desired); err != nil {
		logger.Fatalf("start ticker orchestrator: %v", err)
	}

	var snapshots infrahttp.SnapshotReader
	if cacheStore != nil {
		snapshots = cacheStore
	}
	handler := infrahttp.NewHandler(orchestrator, snapshots)

	server := &http.Server{
		Addr:    cfg.HTTP.Addr(),
		Handler: handler,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("HTTP server listening on %s", cfg.HTTP.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("server shutdown error: %v", err)
		}

		if err := orchestrator.Stop(); err != nil && !errors.Is(err, tickersvc.ErrNotRunning) {
			logger.Errorf("orchestrator stop error: %v", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Fatalf("service stopped with error: %v", err)
	}
	logger.Info("service stopped")
}

func containsToken(tokens []int64, token int64) bool {
	for _, t := range tokens {
		if t == token {
			return true
		}
	}
	return false
}
