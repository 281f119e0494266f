// Command api serves the wizard and the asset routes backed by Postgres,
// MinIO and the asynq re-verification queue.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/VaultAI/internal/api"
	"github.com/dharsanguruparan/VaultAI/internal/config"
	"github.com/dharsanguruparan/VaultAI/internal/database"
	"github.com/dharsanguruparan/VaultAI/internal/logging"
	"github.com/dharsanguruparan/VaultAI/internal/mint"
	"github.com/dharsanguruparan/VaultAI/internal/processing"
	"github.com/dharsanguruparan/VaultAI/internal/queue"
	"github.com/dharsanguruparan/VaultAI/internal/repository"
	"github.com/dharsanguruparan/VaultAI/internal/s3storage"
	"github.com/dharsanguruparan/VaultAI/internal/server"
	"github.com/dharsanguruparan/VaultAI/internal/signing"
	"github.com/dharsanguruparan/VaultAI/internal/verification"
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
	zap.ReplaceGlobals(logger)

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

	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer client.Close()

	sim := verification.NewSimulator(
		verification.WithDelay(cfg.VerifyDelay),
		verification.WithScoreRange(cfg.MinScore, cfg.MaxScore),
		verification.WithThreshold(cfg.ApproveAtScore),
	)
	var scorer verification.Scorer = verification.NewSimulatedScorer(sim)
	if cfg.ScorerURL != "" {
		scorer = verification.NewHTTPScorer(cfg.ScorerURL, nil, cfg.ApproveAtScore,
			verification.FractionalScores(cfg.ScorerFraction))
	}

	assets := repository.NewAssetRepository(pool)
	activity := repository.NewActivityRepository(pool)
	reverify := func(ctx context.Context, payload queue.ReverifyPayload) error {
		return queue.EnqueueReverify(ctx, client, payload)
	}

	srv := server.New(cfg, server.Deps{
		Verifier:  sim,
		Minter:    mint.NewSimulator(cfg.MintDelay),
		Files:     store,
		Assets:    assets,
		Activity:  activity,
		Processor: processing.New(cfg.ProcessingPool, logger),
		Signer:    signing.NewSigner(cfg.SigningSecret),
		API: api.New(cfg, api.Deps{
			Assets:   assets,
			Files:    store,
			Activity: activity,
			Scorer:   scorer,
			Reverify: reverify,
			Logger:   logger,
		}),
		Reverify: reverify,
		Logger:   logger,
	})
	if err := srv.Serve(ctx); err != nil {
		logger.Error("api stopped", zap.Error(err))
		os.Exit(1)
	}
}
