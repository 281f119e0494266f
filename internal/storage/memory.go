// Package storage defines the persistence and file-storage contracts used by
// the wizard and the asset API, plus in-memory implementations for local
// runs and tests.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/VaultAI/internal/model"
)

var (
	// ErrNotFound is returned when a record or object does not exist.
	ErrNotFound = errors.New("not found")
)

// AssetStore persists finalized asset records.
type AssetStore interface {
	Create(ctx context.Context, rec *model.AssetRecord) error
	Get(ctx context.Context, id string) (*model.AssetRecord, error)
	List(ctx context.Context) ([]model.AssetRecord, error)
	UpdateVerification(ctx context.Context, id, status string, score int) error
}

// ActivityLog records user-facing activity entries.
type ActivityLog interface {
	Record(ctx context.Context, a *model.Activity) error
	List(ctx context.Context, limit int) ([]model.Activity, error)
}

// FileStore keeps uploaded evidence and returns a retrievable URL for it.
type FileStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// MemoryStore keeps asset records in a map guarded by an RWMutex.
type MemoryStore struct {
	mu     sync.RWMutex
	assets map[string]*model.AssetRecord
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		assets: make(map[string]*model.AssetRecord),
	}
}

// Create inserts rec, assigning an id when it has none.
func (m *MemoryStore) Create(_ context.Context, rec *model.AssetRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if _, exists := m.assets[rec.ID]; exists {
		return fmt.Errorf("asset %s already exists", rec.ID)
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	stored := *rec
	m.assets[rec.ID] = &stored
	return nil
}

// Get returns a copy of the record.
func (m *MemoryStore) Get(_ context.Context, id string) (*model.AssetRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.assets[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *rec
	return &out, nil
}

// List returns every record, oldest first.
func (m *MemoryStore) List(_ context.Context) ([]model.AssetRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.AssetRecord, 0, len(m.assets))
	for _, rec := range m.assets {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// UpdateVerification replaces status and score after a re-verification.
func (m *MemoryStore) UpdateVerification(_ context.Context, id, status string, score int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.assets[id]
	if !ok {
		return ErrNotFound
	}
	rec.Status = status
	rec.Score = score
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

// MemoryActivity is an append-only in-memory ActivityLog.
type MemoryActivity struct {
	mu      sync.RWMutex
	entries []model.Activity
}

// NewMemoryActivity constructs a MemoryActivity.
func NewMemoryActivity() *MemoryActivity {
	return &MemoryActivity{}
}

// Record appends a.
func (m *MemoryActivity) Record(_ context.Context, a *model.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	m.entries = append(m.entries, *a)
	return nil
}

// List returns up to limit entries, newest first. A non-positive limit
// returns everything.
func (m *MemoryActivity) List(_ context.Context, limit int) ([]model.Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := len(m.entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]model.Activity, 0, limit)
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

// MemoryFiles keeps uploaded objects in memory and hands out mem:// URLs.
type MemoryFiles struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryFiles constructs a MemoryFiles.
func NewMemoryFiles() *MemoryFiles {
	return &MemoryFiles{objects: make(map[string][]byte)}
}

// Put stores the object under key.
func (m *MemoryFiles) Put(_ context.Context, key string, r io.Reader, size int64, _ string) (string, error) {
	var buf bytes.Buffer
	if size > 0 {
		buf.Grow(int(size))
	}
	if _, err := io.Copy(&buf, r); err != nil {
		return "", fmt.Errorf("read object %s: %w", key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = buf.Bytes()
	return "mem://" + key, nil
}

// Get returns the stored bytes.
func (m *MemoryFiles) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}
