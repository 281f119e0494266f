package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/VaultAI/internal/model"
	"github.com/dharsanguruparan/VaultAI/internal/queue"
	"github.com/dharsanguruparan/VaultAI/internal/storage"
	"github.com/dharsanguruparan/VaultAI/internal/verification"
)

type stubScorer struct {
	score    verification.Score
	err      error
	fileURL  string
	metadata json.RawMessage
}

func (s *stubScorer) Score(_ context.Context, fileURL string, metadata json.RawMessage) (verification.Score, error) {
	s.fileURL = fileURL
	s.metadata = metadata
	return s.score, s.err
}

func seed(t *testing.T) (*storage.MemoryStore, *storage.MemoryFiles, *model.AssetRecord) {
	t.Helper()
	ctx := context.Background()
	files := storage.NewMemoryFiles()
	url, err := files.Put(ctx, "evidence/d1/f1-photo.png", bytes.NewReader([]byte("png bytes")), 9, "image/png")
	require.NoError(t, err)
	assets := storage.NewMemoryStore()
	rec := &model.AssetRecord{
		FileURL:   url,
		ObjectKey: "evidence/d1/f1-photo.png",
		Metadata:  json.RawMessage(`{"assetName":"Loft"}`),
		Status:    model.VerificationApproved,
		Score:     91,
		Owner:     "0xabc",
	}
	require.NoError(t, assets.Create(ctx, rec))
	return assets, files, rec
}

func reverifyTask(t *testing.T, assetID, key string) *asynq.Task {
	t.Helper()
	task, err := queue.NewReverifyTask(queue.ReverifyPayload{AssetID: assetID, ObjectKey: key})
	require.NoError(t, err)
	return task
}

func TestHandleReverifyUpdatesAsset(t *testing.T) {
	assets, files, rec := seed(t)
	activity := storage.NewMemoryActivity()
	scorer := &stubScorer{score: verification.Score{Status: model.VerificationFlagged, Score: 42}}
	p := NewProcessor(assets, files, scorer, activity, nil)

	require.NoError(t, p.HandleReverify(context.Background(), reverifyTask(t, rec.ID, "")))

	got, err := assets.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VerificationFlagged, got.Status)
	assert.Equal(t, 42, got.Score)
	assert.Equal(t, rec.FileURL, scorer.fileURL)
	assert.JSONEq(t, `{"metadata":{"assetName":"Loft"}}`, string(scorer.metadata))

	entries, err := activity.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActivityReverification, entries[0].Type)
	assert.Equal(t, model.ActivityCompleted, entries[0].Status)
	assert.Equal(t, rec.ID, entries[0].AssetID)
}

func TestHandleReverifyUnknownAssetSkipsRetry(t *testing.T) {
	assets, files, _ := seed(t)
	p := NewProcessor(assets, files, &stubScorer{}, nil, nil)
	err := p.HandleReverify(context.Background(), reverifyTask(t, "missing", ""))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleReverifyBadPayloadSkipsRetry(t *testing.T) {
	p := NewProcessor(storage.NewMemoryStore(), storage.NewMemoryFiles(), &stubScorer{}, nil, nil)
	err := p.HandleReverify(context.Background(), asynq.NewTask(queue.ReverifyAssetTask, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleReverifyScorerFailureIsRetried(t *testing.T) {
	assets, files, rec := seed(t)
	activity := storage.NewMemoryActivity()
	p := NewProcessor(assets, files, &stubScorer{err: errors.New("scorer offline")}, activity, nil)

	err := p.HandleReverify(context.Background(), reverifyTask(t, rec.ID, rec.ObjectKey))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)

	got, err := assets.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 91, got.Score)

	entries, err := activity.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActivityFailed, entries[0].Status)
}

func TestHandleReverifyMissingEvidence(t *testing.T) {
	assets, files, rec := seed(t)
	p := NewProcessor(assets, files, &stubScorer{}, nil, nil)
	err := p.HandleReverify(context.Background(), reverifyTask(t, rec.ID, "evidence/gone"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
