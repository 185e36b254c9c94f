package blobs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/absfs/absfs"
	"github.com/absfs/memfs"
	"github.com/google/uuid"
)

// FileSystem is the part of absfs.FileSystem the store needs.
type FileSystem interface {
	OpenFile(name string, flag int, perm os.FileMode) (absfs.File, error)
	MkdirAll(name string, perm os.FileMode) error
	Rename(oldpath, newpath string) error
	Remove(name string) error
}

// FSStore keeps blobs as files under root, sharded by the first byte of the
// locator's SHA-256: {root}/{ab}/{sha256hex}.
type FSStore struct {
	fs   FileSystem
	root string
}

func NewFSStore(fsys FileSystem, root string) *FSStore {
	return &FSStore{fs: fsys, root: root}
}

// NewLocalStore stores blobs on disk below dir.
func NewLocalStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return NewFSStore(&dirFS{root: dir}, "/"), nil
}

// NewMemoryStore keeps blobs in an in-process memfs. memfs shares one inode
// tree between all files, so every access goes through a lockedFS.
func NewMemoryStore() (*FSStore, error) {
	mfs, err := memfs.NewFS()
	if err != nil {
		return nil, err
	}
	return NewFSStore(&lockedFS{fs: mfs}, "/blobs"), nil
}

func (s *FSStore) pathFor(locator string) (dir, file string) {
	sum := sha256.Sum256([]byte(locator))
	name := hex.EncodeToString(sum[:])
	dir = path.Join(s.root, name[:2])
	return dir, path.Join(dir, name)
}

func (s *FSStore) Write(ctx context.Context, locator string, body io.Reader) (err error) {
	dir, final := s.pathFor(locator)
	if err := s.fs.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp := final + ".tmp-" + uuid.NewString()
	f, err := s.fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create temp blob: %w", err)
	}
	defer func() {
		if err != nil {
			_ = s.fs.Remove(tmp)
		}
	}()

	if _, err = io.Copy(f, &ctxReader{ctx: ctx, r: body}); err != nil {
		_ = f.Close()
		return fmt.Errorf("write blob: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close blob: %w", err)
	}
	if err = s.fs.Rename(tmp, final); err != nil {
		return fmt.Errorf("commit blob: %w", err)
	}
	return nil
}

func (s *FSStore) Read(ctx context.Context, locator string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, name := s.pathFor(locator)
	f, err := s.fs.OpenFile(name, os.O_RDONLY, 0)
	if errors.Is(err, os.ErrNotExist) {
		return nil, notFound(locator)
	}
	if err != nil {
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return f, nil
}

func (s *FSStore) Delete(ctx context.Context, locator string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, name := s.pathFor(locator)
	err := s.fs.Remove(name)
	if errors.Is(err, os.ErrNotExist) {
		return notFound(locator)
	}
	if err != nil {
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}

// dirFS maps slash paths onto the OS filesystem below root.
type dirFS struct {
	root string
}

func (d *dirFS) real(name string) string {
	return filepath.Join(d.root, filepath.FromSlash(name))
}

func (d *dirFS) OpenFile(name string, flag int, perm os.FileMode) (absfs.File, error) {
	return os.OpenFile(d.real(name), flag, perm)
}

func (d *dirFS) MkdirAll(name string, perm os.FileMode) error {
	return os.MkdirAll(d.real(name), perm)
}

func (d *dirFS) Rename(oldpath, newpath string) error {
	return os.Rename(d.real(oldpath), d.real(newpath))
}

func (d *dirFS) Remove(name string) error {
	return os.Remove(d.real(name))
}


// lockedFS serializes tree mutations of a FileSystem that is not safe for
// concurrent use. Read-only opens share the lock. Close takes the write lock
// because a memfs file publishes its contents to the tree on close.
type lockedFS struct {
	mu sync.RWMutex
	fs FileSystem
}

func (l *lockedFS) OpenFile(name string, flag int, perm os.FileMode) (absfs.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND) == 0 {
		l.mu.RLock()
		defer l.mu.RUnlock()
	} else {
		l.mu.Lock()
		defer l.mu.Unlock()
	}
	f, err := l.fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &lockedFile{File: f, mu: &l.mu}, nil
}

func (l *lockedFS) MkdirAll(name string, perm os.FileMode) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fs.MkdirAll(name, perm)
}

func (l *lockedFS) Rename(oldpath, newpath string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fs.Rename(oldpath, newpath)
}

func (l *lockedFS) Remove(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fs.Remove(name)
}

type lockedFile struct {
	absfs.File
	mu *sync.RWMutex
}

func (f *lockedFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.File.Close()
}
