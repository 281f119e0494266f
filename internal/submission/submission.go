// Package submission turns a minted draft into the record handed to the
// persistence service.
package submission

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/VaultAI/internal/model"
)

var (
	// ErrNotMinted is returned when a draft without a mint result is finalized.
	ErrNotMinted = errors.New("finalize requires a minted draft")
	// ErrNoEvidence is returned when no file can represent the draft.
	ErrNoEvidence = errors.New("draft has no accepted files")
)

// FileSummary is the per-file part of the metadata blob.
type FileSummary struct {
	Name      string `json:"name"`
	MimeType  string `json:"mimeType"`
	SizeBytes int64  `json:"sizeBytes"`
}

// Metadata is the JSON blob stored alongside the record.
type Metadata struct {
	DraftID              string          `json:"draftId"`
	AssetType            model.AssetType `json:"assetType"`
	AssetName            string          `json:"assetName"`
	AssetDescription     string          `json:"assetDescription"`
	Files                []FileSummary   `json:"files"`
	TokenID              string          `json:"tokenId"`
	TransactionReference string          `json:"transactionReference"`
	TokenURI             string          `json:"tokenUri"`
	VerifiedAt           time.Time       `json:"verifiedAt"`
	MintedAt             time.Time       `json:"mintedAt"`
}

// RepresentativeFile picks the file sent to storage: the most recently
// accepted one.
func RepresentativeFile(files []model.AcceptedFile) (model.AcceptedFile, error) {
	if len(files) == 0 {
		return model.AcceptedFile{}, ErrNoEvidence
	}
	return files[len(files)-1], nil
}

// Finalize maps a minted draft onto an AssetRecord. The mapping is lossy:
// only fileURL survives of the file list and the asset details are folded
// into Metadata.
func Finalize(draft *model.SubmissionDraft, fileURL string) (model.AssetRecord, error) {
	if draft.Mint == nil {
		return model.AssetRecord{}, ErrNotMinted
	}
	if draft.Verification == nil {
		return model.AssetRecord{}, fmt.Errorf("draft %s minted without verification: %w", draft.ID, ErrNotMinted)
	}
	meta := Metadata{
		DraftID:              draft.ID,
		AssetType:            draft.AssetType,
		AssetName:            draft.AssetName,
		AssetDescription:     draft.AssetDescription,
		Files:                make([]FileSummary, 0, len(draft.Files)),
		TokenID:              draft.Mint.TokenID,
		TransactionReference: draft.Mint.TransactionReference,
		TokenURI:             draft.Mint.TokenURI,
		VerifiedAt:           draft.Verification.CompletedAt,
		MintedAt:             draft.Mint.CompletedAt,
	}
	for _, f := range draft.Files {
		meta.Files = append(meta.Files, FileSummary{Name: f.Name, MimeType: f.MimeType, SizeBytes: f.SizeBytes})
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return model.AssetRecord{}, fmt.Errorf("marshal metadata: %w", err)
	}
	return model.AssetRecord{
		ID:                   uuid.NewString(),
		FileURL:              fileURL,
		Metadata:             raw,
		Status:               draft.Verification.Status,
		Score:                draft.Verification.Score,
		Owner:                draft.Owner,
		TokenID:              draft.Mint.TokenID,
		TransactionReference: draft.Mint.TransactionReference,
	}, nil
}

// ObjectKey is the storage key for a draft's representative file.
func ObjectKey(draftID string, f model.AcceptedFile) string {
	return fmt.Sprintf("evidence/%s/%s-%s", draftID, f.ID, f.Name)
}
