package repomanager

import (
	"context"

	"github.com/dmitrijs2005/csvkeeper/internal/server/repositories/files"
)

// BoltRepositoryManager serves single-node deployments from a bbolt file.
type BoltRepositoryManager struct {
	repo *files.BoltRepository
}

func NewBoltRepositoryManager(path string) (*BoltRepositoryManager, error) {
	repo, err := files.OpenBoltRepository(path)
	if err != nil {
		return nil, err
	}
	return &BoltRepositoryManager{repo: repo}, nil
}

// RunMigrations is a no-op: buckets are created on open.
func (m *BoltRepositoryManager) RunMigrations(context.Context) error { return nil }

func (m *BoltRepositoryManager) Files() files.Repository { return m.repo }

func (m *BoltRepositoryManager) Close() error { return m.repo.Close() }

type MemoryRepositoryManager struct {
	repo *files.MemRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{repo: files.NewMemRepository()}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context) error { return nil }

func (m *MemoryRepositoryManager) Files() files.Repository { return m.repo }

func (m *MemoryRepositoryManager) Close() error { return nil }
