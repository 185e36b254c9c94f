package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/csvkeeper/internal/cryptox"
	"github.com/dmitrijs2005/csvkeeper/internal/ingest"
	"github.com/dmitrijs2005/csvkeeper/internal/logging"
	"github.com/dmitrijs2005/csvkeeper/internal/server/blobs"
	"github.com/dmitrijs2005/csvkeeper/internal/server/models"
	"github.com/dmitrijs2005/csvkeeper/internal/server/notify"
	"github.com/dmitrijs2005/csvkeeper/internal/server/repositories/files"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

func newWrapper(t *testing.T) *cryptox.KeyWrapper {
	t.Helper()
	w, err := cryptox.NewKeyWrapper(bytes.Repeat([]byte{42}, cryptox.KeySize))
	require.NoError(t, err)
	return w
}

func newMemStore(t *testing.T) blobs.Store {
	t.Helper()
	s, err := blobs.NewMemoryStore()
	require.NoError(t, err)
	return s
}

func newFileService(t *testing.T, repo files.Repository, store blobs.Store) *FileService {
	t.Helper()
	return NewFileService(repo, store, ingest.NewNormalizer(0), newWrapper(t), logging.NewNop(), 2)
}

// recordingStore wraps a Store and records calls; failing hooks are optional.
type recordingStore struct {
	blobs.Store

	mu      sync.Mutex
	writes  []string
	reads   []string
	deletes []string

	deleteErr func(locator string) error
	deleteHit chan struct{}
	release   chan struct{}
}

func (r *recordingStore) Write(ctx context.Context, locator string, body io.Reader) error {
	r.mu.Lock()
	r.writes = append(r.writes, locator)
	r.mu.Unlock()
	return r.Store.Write(ctx, locator, body)
}

func (r *recordingStore) Read(ctx context.Context, locator string) (io.ReadCloser, error) {
	r.mu.Lock()
	r.reads = append(r.reads, locator)
	r.mu.Unlock()
	return r.Store.Read(ctx, locator)
}

func (r *recordingStore) Delete(ctx context.Context, locator string) error {
	r.mu.Lock()
	r.deletes = append(r.deletes, locator)
	r.mu.Unlock()

	if r.deleteHit != nil {
		r.deleteHit <- struct{}{}
	}
	if r.release != nil {
		<-r.release
	}
	if r.deleteErr != nil {
		if err := r.deleteErr(locator); err != nil {
			return err
		}
	}
	return r.Store.Delete(ctx, locator)
}

func (r *recordingStore) readCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reads)
}

// failingRepo overrides selected Repository methods with errors.
type failingRepo struct {
	files.Repository
	createErr error
	deleteErr error
	listErr   error
}

func (f *failingRepo) Create(ctx context.Context, rec *models.FileRecord) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.Repository.Create(ctx, rec)
}

func (f *failingRepo) Delete(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Repository.Delete(ctx, id)
}

func (f *failingRepo) ListOlderThan(ctx context.Context, cutoff time.Time) ([]*models.FileRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.Repository.ListOlderThan(ctx, cutoff)
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []notify.Notice
}

func (f *fakeNotifier) Enqueue(n notify.Notice) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, n)
	return true
}

func (f *fakeNotifier) all() []notify.Notice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.Notice(nil), f.notices...)
}

type waiter struct {
	at time.Time
	ch chan time.Time
}

// fakeClock only moves when Advance is called.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []waiter
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.now
		return ch
	}
	c.waiters = append(c.waiters, waiter{at: c.now.Add(d), ch: ch})
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	pending := c.waiters[:0]
	for _, w := range c.waiters {
		if !w.at.After(c.now) {
			w.ch <- c.now
			continue
		}
		pending = append(pending, w)
	}
	c.waiters = pending
}

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

var errBoom = errors.New("boom")
