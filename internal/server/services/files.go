// Package services contains server-side business logic. This file implements
// FileService, which turns uploaded CSV batches into encrypted blobs plus
// metadata records and reverses the process on retrieval.
package services

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/csvkeeper/internal/common"
	"github.com/dmitrijs2005/csvkeeper/internal/cryptox"
	"github.com/dmitrijs2005/csvkeeper/internal/ingest"
	"github.com/dmitrijs2005/csvkeeper/internal/logging"
	"github.com/dmitrijs2005/csvkeeper/internal/server/blobs"
	"github.com/dmitrijs2005/csvkeeper/internal/server/models"
	"github.com/dmitrijs2005/csvkeeper/internal/server/repositories/files"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

type UploadRequest struct {
	OwnerID     string
	FileName    string
	ContentType string
	Data        []byte
}

// UploadResult is what the uploader gets back. It never carries the key.
type UploadResult struct {
	ID          string
	DisplayName string
	IV          string
}

// Download is a decrypted file. Body must be closed; its Read surfaces
// *common.CryptoError when the stored ciphertext does not authenticate.
type Download struct {
	DisplayName string
	ContentType string
	Body        io.ReadCloser
}

type FileService struct {
	repo       files.Repository
	blobs      blobs.Store
	normalizer *ingest.Normalizer
	cipher     *cryptox.FileCipher
	wrapper    *cryptox.KeyWrapper
	sem        *semaphore.Weighted
	logger     logging.Logger
	now        func() time.Time
}

// NewFileService wires the upload and retrieval pipeline. concurrency bounds
// how many uploads encrypt and write blobs at the same time.
func NewFileService(repo files.Repository, store blobs.Store, n *ingest.Normalizer, w *cryptox.KeyWrapper,
	l logging.Logger, concurrency int) *FileService {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &FileService{
		repo:       repo,
		blobs:      store,
		normalizer: n,
		cipher:     cryptox.NewFileCipher(),
		wrapper:    w,
		sem:        semaphore.NewWeighted(int64(concurrency)),
		logger:     l.With("module", "file_service"),
		now:        time.Now,
	}
}

// NewBlobLocator returns a fresh locator of the form files/{yyyy}/{mm}/{dd}/{uuid}.
func NewBlobLocator(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("files/%04d/%02d/%02d/%s", t.Year(), t.Month(), t.Day(), uuid.New())
}

// Upload normalizes, encrypts and persists one batch. The metadata record is
// committed only after the blob is fully written; if the commit fails the
// blob is removed again.
func (s *FileService) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	canonical, err := s.normalizer.Normalize(req.ContentType, req.Data)
	if err != nil {
		return nil, err
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	es, err := s.cipher.Encrypt(bytes.NewReader(canonical))
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(es.Key)

	locator := NewBlobLocator(s.now())
	if err := s.blobs.Write(ctx, locator, es); err != nil {
		var ce *common.CryptoError
		if errors.As(err, &ce) {
			return nil, ce
		}
		return nil, &common.StoreError{Store: "blob", Op: "write", Err: err}
	}

	wrapped, err := s.wrapper.Wrap(es.Key)
	if err != nil {
		s.rollback(ctx, locator)
		return nil, err
	}

	rec := &models.FileRecord{
		DisplayName: req.FileName + common.EncryptedSuffix,
		BlobLocator: locator,
		OwnerID:     req.OwnerID,
		Key:         wrapped,
		IV:          hex.EncodeToString(es.IV),
	}
	id, err := s.repo.Create(ctx, rec)
	if err != nil {
		s.rollback(ctx, locator)
		return nil, &common.StoreError{Store: "metadata", Op: "create", Err: err}
	}

	s.logger.Info(ctx, "file stored", "id", id, "owner_id", req.OwnerID, "size", len(canonical))

	return &UploadResult{ID: id, DisplayName: rec.DisplayName, IV: rec.IV}, nil
}

func (s *FileService) rollback(ctx context.Context, locator string) {
	if err := s.blobs.Delete(context.WithoutCancel(ctx), locator); err != nil && !errors.Is(err, common.ErrorNotFound) {
		s.logger.Error(ctx, "blob rollback failed", "blob", locator, "error", err)
	}
}

// Retrieve looks the record up, validates its key material and returns a
// streaming plaintext body. Nothing is modified.
func (s *FileService) Retrieve(ctx context.Context, id string) (*Download, error) {
	rec, err := s.repo.Get(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, &common.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, &common.StoreError{Store: "metadata", Op: "get", Err: err}
	}

	key, iv, err := s.material(rec)
	if err != nil {
		s.logger.Error(ctx, "corrupt file record", "id", id, "error", err)
		return nil, err
	}

	blob, err := s.blobs.Read(ctx, rec.BlobLocator)
	if errors.Is(err, common.ErrorNotFound) {
		s.logger.Error(ctx, "blob missing for existing record", "id", id, "blob", rec.BlobLocator)
		return nil, &common.BlobMissingError{ID: id, Locator: rec.BlobLocator}
	}
	if err != nil {
		return nil, &common.StoreError{Store: "blob", Op: "read", Err: err}
	}

	plain, err := s.cipher.Decrypt(blob, key, iv)
	if err != nil {
		_ = blob.Close()
		return nil, err
	}

	return &Download{
		DisplayName: rec.DisplayName,
		ContentType: common.CSVContentType,
		Body:        &readCloser{Reader: plain, Closer: blob},
	}, nil
}

// material decodes and checks the stored iv and wrapped key.
func (s *FileService) material(rec *models.FileRecord) ([]byte, []byte, error) {
	if len(rec.IV) != 2*cryptox.IVSize {
		return nil, nil, &common.CorruptRecordError{ID: rec.ID, Reason: fmt.Sprintf("iv has %d hex chars", len(rec.IV))}
	}
	iv, err := hex.DecodeString(rec.IV)
	if err != nil {
		return nil, nil, &common.CorruptRecordError{ID: rec.ID, Reason: "iv is not hex", Err: err}
	}

	key, err := s.wrapper.Unwrap(rec.Key)
	if err != nil {
		return nil, nil, &common.CorruptRecordError{ID: rec.ID, Reason: "key does not unwrap", Err: err}
	}
	if len(key) != cryptox.KeySize {
		return nil, nil, &common.CorruptRecordError{ID: rec.ID, Reason: fmt.Sprintf("key has %d bytes", len(key))}
	}
	return key, iv, nil
}

// List returns all records without key material, oldest first.
func (s *FileService) List(ctx context.Context) ([]*models.FileInfo, error) {
	recs, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, &common.StoreError{Store: "metadata", Op: "list", Err: err}
	}
	out := make([]*models.FileInfo, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Info())
	}
	return out, nil
}

// Delete removes a file outside the retention schedule: blob first, then
// metadata. A blob that is already gone does not stop the metadata delete.
func (s *FileService) Delete(ctx context.Context, id string) error {
	rec, err := s.repo.Get(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		return &common.NotFoundError{ID: id}
	}
	if err != nil {
		return &common.StoreError{Store: "metadata", Op: "get", Err: err}
	}

	if err := s.blobs.Delete(ctx, rec.BlobLocator); err != nil && !errors.Is(err, common.ErrorNotFound) {
		return &common.StoreError{Store: "blob", Op: "delete", Err: err}
	}
	if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, common.ErrorNotFound) {
		return &common.StoreError{Store: "metadata", Op: "delete", Err: err}
	}

	s.logger.Info(ctx, "file deleted", "id", id)
	return nil
}

type readCloser struct {
	io.Reader
	io.Closer
}
