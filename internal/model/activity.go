package model

import "time"

// ActivityType classifies entries in the activity log.
type ActivityType string

const (
	ActivityVaultCreated       ActivityType = "vault_created"
	ActivityDocumentsUploaded  ActivityType = "documents_uploaded"
	ActivityVerification       ActivityType = "ai_verification"
	ActivityVerificationFailed ActivityType = "verification_failed"
	ActivityVaultMinted        ActivityType = "vault_minted"
	ActivityReverification     ActivityType = "reverification"
)

// ActivityStatus is the state an activity entry reports.
type ActivityStatus string

const (
	ActivityCompleted ActivityStatus = "completed"
	ActivityPending   ActivityStatus = "pending"
	ActivityFailed    ActivityStatus = "failed"
)

// Activity is one line of the user-facing activity log.
type Activity struct {
	ID        string         `json:"id"`
	Type      ActivityType   `json:"type"`
	Status    ActivityStatus `json:"status"`
	DraftID   string         `json:"draftId,omitempty"`
	AssetID   string         `json:"assetId,omitempty"`
	Detail    string         `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}
