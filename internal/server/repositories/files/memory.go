package files

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/csvkeeper/internal/common"
	"github.com/dmitrijs2005/csvkeeper/internal/server/models"
)

// MemRepository is an in-process Repository for tests and ephemeral runs.
type MemRepository struct {
	mu      sync.RWMutex
	records map[string]models.FileRecord
}

func NewMemRepository() *MemRepository {
	return &MemRepository{records: make(map[string]models.FileRecord)}
}

func (r *MemRepository) Create(_ context.Context, rec *models.FileRecord) (string, error) {
	prepare(rec)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[rec.ID]; ok {
		return "", fmt.Errorf("duplicate id %s", rec.ID)
	}
	r.records[rec.ID] = *rec
	return rec.ID, nil
}

func (r *MemRepository) Get(_ context.Context, id string) (*models.FileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &rec, nil
}

func (r *MemRepository) ListAll(_ context.Context) ([]*models.FileRecord, error) {
	return r.filter(func(*models.FileRecord) bool { return true }), nil
}

func (r *MemRepository) ListOlderThan(_ context.Context, cutoff time.Time) ([]*models.FileRecord, error) {
	return r.filter(func(rec *models.FileRecord) bool { return rec.CreatedAt.Before(cutoff) }), nil
}

func (r *MemRepository) filter(keep func(*models.FileRecord) bool) []*models.FileRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.FileRecord
	for _, rec := range r.records {
		if keep(&rec) {
			result = append(result, &rec)
		}
	}
	sortByCreated(result)
	return result
}

func (r *MemRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.records, id)
	return nil
}
