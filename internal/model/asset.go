// Package model contains the struct definitions shared by the wizard, the
// simulators and the persistence layers.
package model

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// AssetType is the closed set of asset categories a vault can represent.
type AssetType string

const (
	AssetRealEstate     AssetType = "real-estate"
	AssetVehicle        AssetType = "vehicle"
	AssetArt            AssetType = "art"
	AssetPreciousMetals AssetType = "precious-metals"
	AssetEquipment      AssetType = "equipment"
	AssetOther          AssetType = "other"
)

// AssetTypeInfo describes an asset type for selection lists.
type AssetTypeInfo struct {
	ID          AssetType `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
}

// AssetTypes lists every supported asset type in display order.
var AssetTypes = []AssetTypeInfo{
	{ID: AssetRealEstate, Name: "Real Estate", Description: "Properties, land, buildings"},
	{ID: AssetVehicle, Name: "Vehicle", Description: "Cars, motorcycles, boats"},
	{ID: AssetArt, Name: "Art & Collectibles", Description: "Artwork, antiques, collectibles"},
	{ID: AssetPreciousMetals, Name: "Precious Metals", Description: "Gold, silver, jewelry"},
	{ID: AssetEquipment, Name: "Equipment", Description: "Industrial, medical equipment"},
	{ID: AssetOther, Name: "Other", Description: "Other valuable assets"},
}

// ParseAssetType returns the AssetType named by s or an error when s is not
// part of the closed set.
func ParseAssetType(s string) (AssetType, error) {
	for _, info := range AssetTypes {
		if string(info.ID) == s {
			return info.ID, nil
		}
	}
	return "", fmt.Errorf("unknown asset type %q", s)
}

// Stage is one of the four fixed wizard steps.
type Stage int

const (
	StageDetails  Stage = 1
	StageUpload   Stage = 2
	StageReview   Stage = 3
	StageComplete Stage = 4
)

func (s Stage) String() string {
	switch s {
	case StageDetails:
		return "Details"
	case StageUpload:
		return "Upload&Verify"
	case StageReview:
		return "Review&Mint"
	case StageComplete:
		return "Complete"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// AcceptedFile is an upload that passed intake checks. Content is borrowed
// from the uploader for the lifetime of the draft and is never serialized.
type AcceptedFile struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	MimeType  string      `json:"mimeType"`
	SizeBytes int64       `json:"sizeBytes"`
	Content   io.ReaderAt `json:"-"`
}

// Verification statuses produced by the scoring rule.
const (
	VerificationApproved = "approved"
	VerificationFlagged  = "flagged"
)

// VerificationResult is the outcome of an authenticity check.
type VerificationResult struct {
	Score       int       `json:"score"`
	Status      string    `json:"status"`
	CompletedAt time.Time `json:"completedAt"`
}

// IsZero reports whether the result was never produced.
func (v VerificationResult) IsZero() bool {
	return v.CompletedAt.IsZero()
}

// MintResult identifies the token record issued for a draft.
type MintResult struct {
	TokenID              string    `json:"tokenId"`
	TransactionReference string    `json:"transactionReference"`
	TokenURI             string    `json:"tokenUri"`
	CompletedAt          time.Time `json:"completedAt"`
}

// SubmissionDraft is the in-progress wizard submission. It is owned by a
// single wizard session and discarded unless it reaches StageComplete and
// is finalized.
type SubmissionDraft struct {
	ID               string              `json:"id"`
	Owner            string              `json:"owner"`
	AssetType        AssetType           `json:"assetType"`
	AssetName        string              `json:"assetName"`
	AssetDescription string              `json:"assetDescription"`
	Files            []AcceptedFile      `json:"files"`
	Verification     *VerificationResult `json:"verification,omitempty"`
	Mint             *MintResult         `json:"mint,omitempty"`
	Stage            Stage               `json:"stage"`
	Errors           map[string]string   `json:"errors"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

// Clone returns a copy that shares no mutable state with d, apart from the
// borrowed file content handles.
func (d *SubmissionDraft) Clone() *SubmissionDraft {
	out := *d
	out.Files = append([]AcceptedFile(nil), d.Files...)
	out.Errors = make(map[string]string, len(d.Errors))
	for k, v := range d.Errors {
		out.Errors[k] = v
	}
	if d.Verification != nil {
		v := *d.Verification
		out.Verification = &v
	}
	if d.Mint != nil {
		m := *d.Mint
		out.Mint = &m
	}
	return &out
}

// AssetRecord is the persisted shape of a finalized submission. It is
// narrower than the draft: files collapse into one FileURL and the asset
// details collapse into Metadata.
type AssetRecord struct {
	ID                   string          `json:"id"`
	FileURL              string          `json:"fileUrl"`
	ObjectKey            string          `json:"objectKey,omitempty"`
	Metadata             json.RawMessage `json:"metadata"`
	Status               string          `json:"status"`
	Score                int             `json:"score"`
	Owner                string          `json:"owner"`
	TokenID              string          `json:"tokenId,omitempty"`
	TransactionReference string          `json:"transactionReference,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}
