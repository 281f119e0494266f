// Package wizard implements the four-stage asset submission wizard: the
// stage gates, the per-draft session that owns a SubmissionDraft, and the
// hand-off to the verification and mint simulators.
package wizard

import (
	"strings"

	"github.com/dharsanguruparan/VaultAI/internal/model"
)

// Field keys used in SubmissionDraft.Errors.
const (
	FieldAssetType        = "assetType"
	FieldAssetName        = "assetName"
	FieldAssetDescription = "assetDescription"
	FieldFiles            = "files"
	FieldMint             = "mint"
)

// Messages shown next to the offending field.
const (
	MsgAssetType        = "Please select an asset type"
	MsgAssetName        = "Asset name is required"
	MsgAssetDescription = "Asset description is required"
	MsgFiles            = "Please upload at least one file"
	MsgMint             = "Mint the vault to finish"
)

// Validate returns one message per missing field for the given stage. An
// empty map means the stage's gate is satisfied.
func Validate(stage model.Stage, d *model.SubmissionDraft) map[string]string {
	errs := make(map[string]string)
	switch stage {
	case model.StageDetails:
		if d.AssetType == "" {
			errs[FieldAssetType] = MsgAssetType
		}
		if strings.TrimSpace(d.AssetName) == "" {
			errs[FieldAssetName] = MsgAssetName
		}
		if strings.TrimSpace(d.AssetDescription) == "" {
			errs[FieldAssetDescription] = MsgAssetDescription
		}
	case model.StageUpload:
		if len(d.Files) == 0 {
			errs[FieldFiles] = MsgFiles
		}
	case model.StageReview:
		if d.Mint == nil {
			errs[FieldMint] = MsgMint
		}
	}
	return errs
}

// CanAdvance reports whether the gate of stage is satisfied by d.
func CanAdvance(stage model.Stage, d *model.SubmissionDraft) bool {
	if stage >= model.StageComplete {
		return false
	}
	return len(Validate(stage, d)) == 0
}

// Advance applies the gate of stage to d. On failure the stage is returned
// unchanged and d.Errors holds exactly the failing fields; on success the
// next stage is returned and d.Errors is cleared. d.Stage is not written.
func Advance(stage model.Stage, d *model.SubmissionDraft) model.Stage {
	if stage >= model.StageComplete {
		return stage
	}
	errs := Validate(stage, d)
	if len(errs) > 0 {
		d.Errors = errs
		return stage
	}
	d.Errors = map[string]string{}
	return stage + 1
}

// Retreat steps back one stage, never below the first.
func Retreat(stage model.Stage) model.Stage {
	if stage <= model.StageDetails {
		return model.StageDetails
	}
	return stage - 1
}
