package files

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/csvkeeper/internal/common"
	"github.com/dmitrijs2005/csvkeeper/internal/server/models"
	"go.etcd.io/bbolt"
)

var (
	bucketFiles     = []byte("files")
	bucketByCreated = []byte("files_by_created")
)

// BoltRepository keeps file metadata in an embedded bbolt database.
// Records are JSON values in the files bucket; files_by_created indexes them
// by big-endian creation time followed by the id, so cursor order is
// (created_at, id).
type BoltRepository struct {
	db *bbolt.DB
}

// OpenBoltRepository opens or creates the database at path.
func OpenBoltRepository(path string) (*BoltRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketFiles, bucketByCreated} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &BoltRepository{db: db}, nil
}

func (r *BoltRepository) Close() error { return r.db.Close() }

func createdKey(t time.Time, id string) []byte {
	k := make([]byte, 8, 8+len(id))
	binary.BigEndian.PutUint64(k, uint64(t.UnixNano()))
	return append(k, id...)
}

func (r *BoltRepository) Create(ctx context.Context, rec *models.FileRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	prepare(rec)

	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}

	err = r.db.Update(func(tx *bbolt.Tx) error {
		fb := tx.Bucket(bucketFiles)
		if fb.Get([]byte(rec.ID)) != nil {
			return fmt.Errorf("duplicate id %s", rec.ID)
		}
		if err := fb.Put([]byte(rec.ID), data); err != nil {
			return fmt.Errorf("put record: %w", err)
		}
		if err := tx.Bucket(bucketByCreated).Put(createdKey(rec.CreatedAt, rec.ID), nil); err != nil {
			return fmt.Errorf("put index: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

func (r *BoltRepository) Get(ctx context.Context, id string) (*models.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec *models.FileRecord
	err := r.db.View(func(tx *bbolt.Tx) error {
		var err error
		rec, err = getRecord(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func getRecord(tx *bbolt.Tx, id string) (*models.FileRecord, error) {
	data := tx.Bucket(bucketFiles).Get([]byte(id))
	if data == nil {
		return nil, common.ErrorNotFound
	}
	rec := &models.FileRecord{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", id, err)
	}
	return rec, nil
}

func (r *BoltRepository) ListAll(ctx context.Context) ([]*models.FileRecord, error) {
	return r.scan(ctx, nil)
}

func (r *BoltRepository) ListOlderThan(ctx context.Context, cutoff time.Time) ([]*models.FileRecord, error) {
	limit := createdKey(cutoff, "")
	return r.scan(ctx, func(k []byte) bool {
		return bytes.Compare(k[:8], limit) < 0
	})
}

// scan walks the creation index in order while accept holds.
func (r *BoltRepository) scan(ctx context.Context, accept func(k []byte) bool) ([]*models.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result []*models.FileRecord
	err := r.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketByCreated).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if accept != nil && !accept(k) {
				break
			}
			rec, err := getRecord(tx, string(k[8:]))
			if err != nil {
				return err
			}
			result = append(result, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *BoltRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		rec, err := getRecord(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketFiles).Delete([]byte(id)); err != nil {
			return err
		}
		return tx.Bucket(bucketByCreated).Delete(createdKey(rec.CreatedAt, rec.ID))
	})
}
