package submission

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/VaultAI/internal/model"
)

func mintedDraft() *model.SubmissionDraft {
	now := time.Now().UTC()
	return &model.SubmissionDraft{
		ID:               "draft-1",
		Owner:            "0xabc",
		AssetType:        model.AssetRealEstate,
		AssetName:        "Loft",
		AssetDescription: "A loft.",
		Files: []model.AcceptedFile{
			{ID: "f1", Name: "deed.png", MimeType: "image/png", SizeBytes: 1024},
			{ID: "f2", Name: "title.pdf", MimeType: "application/pdf", SizeBytes: 2048},
		},
		Verification: &model.VerificationResult{Score: 92, Status: model.VerificationApproved, CompletedAt: now},
		Mint:         &model.MintResult{TokenID: "0", TransactionReference: "0xdead", TokenURI: "ipfs://vault/draft-1/0", CompletedAt: now},
		Stage:        model.StageComplete,
	}
}

func TestFinalize(t *testing.T) {
	rec, err := Finalize(mintedDraft(), "mem://evidence/draft-1/f2-title.pdf")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "mem://evidence/draft-1/f2-title.pdf", rec.FileURL)
	assert.Equal(t, model.VerificationApproved, rec.Status)
	assert.Equal(t, 92, rec.Score)
	assert.Equal(t, "0xabc", rec.Owner)
	assert.Equal(t, "0", rec.TokenID)

	var meta Metadata
	require.NoError(t, json.Unmarshal(rec.Metadata, &meta))
	assert.Equal(t, "Loft", meta.AssetName)
	assert.Equal(t, model.AssetRealEstate, meta.AssetType)
	assert.Len(t, meta.Files, 2)
	assert.Equal(t, "0xdead", meta.TransactionReference)
}

func TestFinalizeRequiresMint(t *testing.T) {
	draft := mintedDraft()
	draft.Mint = nil
	_, err := Finalize(draft, "url")
	assert.ErrorIs(t, err, ErrNotMinted)
}

func TestRepresentativeFile(t *testing.T) {
	f, err := RepresentativeFile(mintedDraft().Files)
	require.NoError(t, err)
	assert.Equal(t, "f2", f.ID)

	_, err = RepresentativeFile(nil)
	assert.ErrorIs(t, err, ErrNoEvidence)
}

func TestObjectKey(t *testing.T) {
	f := model.AcceptedFile{ID: "f1", Name: "deed.png"}
	assert.Equal(t, "evidence/draft-1/f1-deed.png", ObjectKey("draft-1", f))
}
