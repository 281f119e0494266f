package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dharsanguruparan/VaultAI/internal/model"
	"github.com/dharsanguruparan/VaultAI/internal/storage"
)

// DB is the part of *pgxpool.Pool the repositories use.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AssetRepository stores finalized asset records in Postgres.
type AssetRepository struct {
	db DB
}

var _ storage.AssetStore = (*AssetRepository)(nil)

// NewAssetRepository constructs a repository.
func NewAssetRepository(db DB) *AssetRepository {
	return &AssetRepository{db: db}
}

const assetColumns = `id, file_url, object_key, metadata, status, score, owner, token_id, transaction_reference, created_at, updated_at`

// Create inserts rec, assigning an id when it has none.
func (r *AssetRepository) Create(ctx context.Context, rec *model.AssetRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if len(rec.Metadata) == 0 {
		rec.Metadata = json.RawMessage(`{}`)
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	_, err := r.db.Exec(ctx, `
		INSERT INTO assets (`+assetColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, rec.ID, rec.FileURL, rec.ObjectKey, rec.Metadata, rec.Status, rec.Score, rec.Owner,
		rec.TokenID, rec.TransactionReference, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

// Get returns an asset by id.
func (r *AssetRepository) Get(ctx context.Context, id string) (*model.AssetRecord, error) {
	row := r.db.QueryRow(ctx, `SELECT `+assetColumns+` FROM assets WHERE id=$1`, id)
	rec, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("asset %s: %w", id, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("select asset: %w", err)
	}
	return rec, nil
}

// List returns every asset, oldest first.
func (r *AssetRepository) List(ctx context.Context) ([]model.AssetRecord, error) {
	rows, err := r.db.Query(ctx, `SELECT `+assetColumns+` FROM assets ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()
	out := []model.AssetRecord{}
	for rows.Next() {
		rec, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	return out, nil
}

// UpdateVerification stores the result of a re-verification.
func (r *AssetRepository) UpdateVerification(ctx context.Context, id, status string, score int) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE assets SET status=$1, score=$2, updated_at=$3 WHERE id=$4
	`, status, score, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("asset %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func scanAsset(row pgx.Row) (*model.AssetRecord, error) {
	var rec model.AssetRecord
	if err := row.Scan(&rec.ID, &rec.FileURL, &rec.ObjectKey, &rec.Metadata, &rec.Status, &rec.Score,
		&rec.Owner, &rec.TokenID, &rec.TransactionReference, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}
