// Command server runs the wizard and the asset routes in one process with
// in-memory backends.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/VaultAI/internal/api"
	"github.com/dharsanguruparan/VaultAI/internal/config"
	"github.com/dharsanguruparan/VaultAI/internal/logging"
	"github.com/dharsanguruparan/VaultAI/internal/mint"
	"github.com/dharsanguruparan/VaultAI/internal/processing"
	"github.com/dharsanguruparan/VaultAI/internal/server"
	"github.com/dharsanguruparan/VaultAI/internal/signing"
	"github.com/dharsanguruparan/VaultAI/internal/storage"
	"github.com/dharsanguruparan/VaultAI/internal/verification"
)

func main() {
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

	assets := storage.NewMemoryStore()
	files := storage.NewMemoryFiles()
	activity := storage.NewMemoryActivity()
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

	srv := server.New(cfg, server.Deps{
		Verifier:  sim,
		Minter:    mint.NewSimulator(cfg.MintDelay),
		Files:     files,
		Assets:    assets,
		Activity:  activity,
		Processor: processing.New(cfg.ProcessingPool, logger),
		Signer:    signing.NewSigner(cfg.SigningSecret),
		API: api.New(cfg, api.Deps{
			Assets:   assets,
			Files:    files,
			Activity: activity,
			Scorer:   scorer,
			Logger:   logger,
		}),
		Logger: logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := srv.Serve(ctx); err != nil {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}
