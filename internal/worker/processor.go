package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/VaultAI/internal/model"
	pdfutil "github.com/dharsanguruparan/VaultAI/internal/pdf"
	"github.com/dharsanguruparan/VaultAI/internal/queue"
	"github.com/dharsanguruparan/VaultAI/internal/storage"
	"github.com/dharsanguruparan/VaultAI/internal/verification"
)

// Processor is plugged into the asynq worker loop.
type Processor struct {
	assets   storage.AssetStore
	files    storage.FileStore
	scorer   verification.Scorer
	activity storage.ActivityLog
	log      *zap.Logger
}

// NewProcessor constructs a worker processor. activity may be nil.
func NewProcessor(assets storage.AssetStore, files storage.FileStore, scorer verification.Scorer, activity storage.ActivityLog, log *zap.Logger) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{assets: assets, files: files, scorer: scorer, activity: activity, log: log}
}

// Handler registers the re-verification handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.ReverifyAssetTask, p.HandleReverify)
	return mux
}

// scoringInput is the metadata handed to the scorer: the stored blob plus
// whatever the evidence itself reveals.
type scoringInput struct {
	Metadata json.RawMessage  `json:"metadata,omitempty"`
	Evidence *pdfutil.Summary `json:"evidence,omitempty"`
}

// HandleReverify rescores a stored asset and writes back status and score.
func (p *Processor) HandleReverify(ctx context.Context, task *asynq.Task) error {
	var payload queue.ReverifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	log := p.log.With(zap.String("asset_id", payload.AssetID))
	failure := func(err error) error {
		log.Warn("reverify failed", zap.Error(err))
		p.record(ctx, payload.AssetID, model.ActivityFailed, err.Error())
		return err
	}

	asset, err := p.assets.Get(ctx, payload.AssetID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("asset %s: %v: %w", payload.AssetID, err, asynq.SkipRetry)
		}
		return failure(err)
	}
	key := payload.ObjectKey
	if key == "" {
		key = asset.ObjectKey
	}
	input := scoringInput{Metadata: asset.Metadata}
	if key != "" {
		data, err := p.files.Get(ctx, key)
		if err != nil {
			return failure(fmt.Errorf("download evidence %s: %w", key, err))
		}
		if pdfutil.IsPDF("", data) {
			sum, err := pdfutil.Inspect(data)
			if err != nil {
				log.Info("evidence not readable as pdf", zap.Error(err))
			} else {
				input.Evidence = &sum
			}
		}
	}
	meta, err := json.Marshal(input)
	if err != nil {
		return failure(fmt.Errorf("marshal scoring input: %w", err))
	}
	score, err := p.scorer.Score(ctx, asset.FileURL, meta)
	if err != nil {
		return failure(err)
	}
	if err := p.assets.UpdateVerification(ctx, asset.ID, score.Status, score.Score); err != nil {
		return failure(err)
	}
	log.Info("asset reverified", zap.Int("score", score.Score), zap.String("status", score.Status))
	p.record(ctx, asset.ID, model.ActivityCompleted, fmt.Sprintf("score %d (%s)", score.Score, score.Status))
	return nil
}

func (p *Processor) record(ctx context.Context, assetID string, status model.ActivityStatus, detail string) {
	if p.activity == nil {
		return
	}
	a := model.Activity{Type: model.ActivityReverification, Status: status, AssetID: assetID, Detail: detail}
	if err := p.activity.Record(context.WithoutCancel(ctx), &a); err != nil {
		p.log.Warn("record activity", zap.Error(err))
	}
}
