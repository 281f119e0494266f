package repository

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/VaultAI/internal/database"
	"github.com/dharsanguruparan/VaultAI/internal/model"
	"github.com/dharsanguruparan/VaultAI/internal/storage"
)

// openTestDB connects to VAULTAI_TEST_DATABASE_URL, e.g. the postgres
// container started by `vaultai up`.
func openTestDB(t *testing.T) DB {
	t.Helper()
	dsn := os.Getenv("VAULTAI_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("VAULTAI_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := database.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, database.EnsureSchema(ctx, pool))
	return pool
}

func TestAssetRepositoryRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewAssetRepository(db)

	rec := &model.AssetRecord{
		FileURL:   "http://minio/evidence/d/f-deed.pdf",
		ObjectKey: "evidence/d/f-deed.pdf",
		Metadata:  json.RawMessage(`{"assetName":"Loft"}`),
		Status:    model.VerificationApproved,
		Score:     88,
		Owner:     "0xabc",
		TokenID:   "0",
	}
	require.NoError(t, repo.Create(ctx, rec))
	require.NotEmpty(t, rec.ID)

	got, err := repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.FileURL, got.FileURL)
	assert.JSONEq(t, `{"assetName":"Loft"}`, string(got.Metadata))

	require.NoError(t, repo.UpdateVerification(ctx, rec.ID, model.VerificationFlagged, 40))
	got, err = repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VerificationFlagged, got.Status)
	assert.Equal(t, 40, got.Score)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, repo.UpdateVerification(ctx, "missing", "flagged", 1), storage.ErrNotFound)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, all)
}

func TestActivityRepositoryNewestFirst(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewActivityRepository(db)

	require.NoError(t, repo.Record(ctx, &model.Activity{Type: model.ActivityVaultCreated, Status: model.ActivityPending, DraftID: "d"}))
	require.NoError(t, repo.Record(ctx, &model.Activity{Type: model.ActivityVaultMinted, Status: model.ActivityCompleted, DraftID: "d"}))

	got, err := repo.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.ActivityVaultMinted, got[0].Type)
}
