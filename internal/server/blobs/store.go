// Package blobs stores encrypted file bodies addressed by opaque locators.
package blobs

import (
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/csvkeeper/internal/common"
)

const (
	BackendS3     = "s3"
	BackendLocal  = "local"
	BackendMemory = "memory"
)

// Store is a blob store. Write is all-or-nothing: a failed or cancelled
// write leaves nothing readable under the locator. Read and Delete report
// common.ErrorNotFound for unknown locators.
type Store interface {
	Write(ctx context.Context, locator string, body io.Reader) error
	Read(ctx context.Context, locator string) (io.ReadCloser, error)
	Delete(ctx context.Context, locator string) error
}

func notFound(locator string) error {
	return fmt.Errorf("blob %s: %w", locator, common.ErrorNotFound)
}

// ctxReader aborts a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
