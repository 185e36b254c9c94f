package files

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/csvkeeper/internal/server/models"
	"github.com/google/uuid"
)

// Repository is the metadata store of encrypted files.
//
// Get and Delete return common.ErrorNotFound when no record has the id.
// ListOlderThan is strict: a record created exactly at cutoff is not returned.
type Repository interface {
	Create(ctx context.Context, rec *models.FileRecord) (string, error)
	Get(ctx context.Context, id string) (*models.FileRecord, error)
	ListAll(ctx context.Context) ([]*models.FileRecord, error)
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]*models.FileRecord, error)
	Delete(ctx context.Context, id string) error
}

// prepare assigns the store-owned fields of a new record.
func prepare(rec *models.FileRecord) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
}

func sortByCreated(recs []*models.FileRecord) {
	slices.SortFunc(recs, func(a, b *models.FileRecord) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
