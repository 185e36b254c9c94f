// Package repomanager opens the configured metadata backend and vends its
// files.Repository together with lifecycle hooks (migrations, close).
package repomanager

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/csvkeeper/internal/server/repositories/files"
)

const (
	BackendPostgres = "postgres"
	BackendBolt     = "bolt"
	BackendMemory   = "memory"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Files() files.Repository
	Close() error
}

// Options selects and configures the metadata backend.
type Options struct {
	Backend     string
	DatabaseDSN string
	BoltPath    string
}

// New opens the backend named in opts.Backend.
func New(opts Options) (RepositoryManager, error) {
	switch opts.Backend {
	case BackendPostgres:
		m, err := NewPostgresRepositoryManager(opts.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		return m, nil
	case BackendBolt:
		m, err := NewBoltRepositoryManager(opts.BoltPath)
		if err != nil {
			return nil, err
		}
		return m, nil
	case BackendMemory:
		return NewMemoryRepositoryManager(), nil
	default:
		return nil, fmt.Errorf("unknown metadata backend %q", opts.Backend)
	}
}
