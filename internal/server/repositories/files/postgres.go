package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/csvkeeper/internal/common"
	"github.com/dmitrijs2005/csvkeeper/internal/dbx"
	"github.com/dmitrijs2005/csvkeeper/internal/server/models"
)

const selectColumns = `SELECT id, display_name, blob_locator, owner_id, key, iv, created_at FROM files`

// PostgresRepository implements file metadata storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new record, assigning ID and CreatedAt when they are empty.
func (r *PostgresRepository) Create(ctx context.Context, rec *models.FileRecord) (string, error) {
	prepare(rec)

	query := `INSERT INTO files (id, display_name, blob_locator, owner_id, key, iv, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	res, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.DisplayName, rec.BlobLocator, rec.OwnerID, rec.Key, rec.IV, rec.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return "", fmt.Errorf("unexpected rows affected: %d", n)
	}

	return rec.ID, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.FileRecord, error) {
	rec := &models.FileRecord{}
	err := r.db.QueryRowContext(ctx, selectColumns+` WHERE id=$1`, id).
		Scan(&rec.ID, &rec.DisplayName, &rec.BlobLocator, &rec.OwnerID, &rec.Key, &rec.IV, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select file: %w", err)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]*models.FileRecord, error) {
	return r.list(ctx, selectColumns+` ORDER BY created_at, id`)
}

// ListOlderThan returns records with created_at strictly before cutoff.
func (r *PostgresRepository) ListOlderThan(ctx context.Context, cutoff time.Time) ([]*models.FileRecord, error) {
	return r.list(ctx, selectColumns+` WHERE created_at < $1 ORDER BY created_at, id`, cutoff.UTC())
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.FileRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.FileRecord
	for rows.Next() {
		var item models.FileRecord
		if err := rows.Scan(&item.ID, &item.DisplayName, &item.BlobLocator, &item.OwnerID, &item.Key, &item.IV, &item.CreatedAt); err != nil {
			return nil, err
		}
		item.CreatedAt = item.CreatedAt.UTC()
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes the record. Zero affected rows means it did not exist.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	ra, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	switch ra {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("wrong rows affected count: %d", ra)
	}
}
