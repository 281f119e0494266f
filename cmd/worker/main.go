package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/VaultAI/internal/config"
	"github.com/dharsanguruparan/VaultAI/internal/database"
	"github.com/dharsanguruparan/VaultAI/internal/logging"
	"github.com/dharsanguruparan/VaultAI/internal/repository"
	"github.com/dharsanguruparan/VaultAI/internal/s3storage"
	"github.com/dharsanguruparan/VaultAI/internal/verification"
	"github.com/dharsanguruparan/VaultAI/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal("ensure schema", zap.Error(err))
	}

	store, err := s3storage.New(cfg)
	if err != nil {
		logger.Fatal("init storage", zap.Error(err))
	}
	if err := store.EnsureBucket(ctx); err != nil {
		logger.Fatal("ensure bucket", zap.Error(err))
	}

	var scorer verification.Scorer = verification.NewSimulatedScorer(verification.NewSimulator(
		verification.WithDelay(cfg.VerifyDelay),
		verification.WithScoreRange(cfg.MinScore, cfg.MaxScore),
		verification.WithThreshold(cfg.ApproveAtScore),
	))
	if cfg.ScorerURL != "" {
		scorer = verification.NewHTTPScorer(cfg.ScorerURL, nil, cfg.ApproveAtScore,
			verification.FractionalScores(cfg.ScorerFraction))
	}

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.ProcessingPool,
		Logger:      logger.Sugar(),
	})
	processor := worker.NewProcessor(
		repository.NewAssetRepository(pool),
		store,
		scorer,
		repository.NewActivityRepository(pool),
		logger,
	)
	mux := processor.Handler()

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	logger.Info("worker started", zap.Int("concurrency", cfg.ProcessingPool))
	if err := server.Run(mux); err != nil {
		logger.Error("worker stopped", zap.Error(err))
		os.Exit(1)
	}
}
