package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/VaultAI/internal/model"
	"github.com/dharsanguruparan/VaultAI/internal/storage"
)

// ActivityRepository is the Postgres-backed activity log.
type ActivityRepository struct {
	db DB
}

var _ storage.ActivityLog = (*ActivityRepository)(nil)

// NewActivityRepository constructs a repository.
func NewActivityRepository(db DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Record inserts a.
func (r *ActivityRepository) Record(ctx context.Context, a *model.Activity) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO activities (id, type, status, draft_id, asset_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, a.ID, string(a.Type), string(a.Status), a.DraftID, a.AssetID, a.Detail, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// List returns up to limit entries, newest first. A non-positive limit
// returns everything.
func (r *ActivityRepository) List(ctx context.Context, limit int) ([]model.Activity, error) {
	query := `SELECT id, type, status, draft_id, asset_id, detail, created_at FROM activities ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()
	out := []model.Activity{}
	for rows.Next() {
		var (
			a           model.Activity
			typ, status string
		)
		if err := rows.Scan(&a.ID, &typ, &status, &a.DraftID, &a.AssetID, &a.Detail, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.Type = model.ActivityType(typ)
		a.Status = model.ActivityStatus(status)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return out, nil
}
