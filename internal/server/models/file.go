// Package models defines server-side data models persisted by the metadata store.
package models

import "time"

// FileRecord is the metadata of one stored encrypted file. The ciphertext
// itself lives in the blob store under BlobLocator.
type FileRecord struct {
	ID          string    `json:"id" db:"id"`
	DisplayName string    `json:"display_name" db:"display_name"`
	BlobLocator string    `json:"blob_locator" db:"blob_locator"`
	OwnerID     string    `json:"owner_id" db:"owner_id"`
	// Key is the per-file key, hex encoded and wrapped under the master key.
	Key string `json:"key" db:"key"`
	// IV is the hex encoded 16-byte CBC initialization vector.
	IV        string    `json:"iv" db:"iv"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Info returns the externally visible projection of the record.
func (r *FileRecord) Info() *FileInfo {
	return &FileInfo{
		ID:          r.ID,
		DisplayName: r.DisplayName,
		OwnerID:     r.OwnerID,
		IV:          r.IV,
		CreatedAt:   r.CreatedAt,
	}
}

// FileInfo is a FileRecord without key material and blob location.
type FileInfo struct {
	ID          string
	DisplayName string
	OwnerID     string
	IV          string
	CreatedAt   time.Time
}
