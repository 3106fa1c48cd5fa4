// Package blob implements the attachment port: binary blob storage scoped
// per vault, with usage accounting. The S3 store covers production (MinIO
// compatible); the memory store backs tests.
package blob

import (
	"context"

	"github.com/dmitrijs2005/keyvault/internal/common"
)

// Store is the attachment port. Get returns common.ErrorNotFound for an
// unknown blob. Usage sums the stored byte sizes for one vault; callers
// aggregate vaults into org-level scopes themselves.
type Store interface {
	Put(ctx context.Context, vaultID, id string, data []byte) error
	Get(ctx context.Context, vaultID, id string) ([]byte, error)
	Delete(ctx context.Context, vaultID, id string) error
	Usage(ctx context.Context, vaultID string) (int64, error)
	DeleteAll(ctx context.Context, vaultID string) error
}

// ErrNotFound is re-exported for call-site readability.
var ErrNotFound = common.ErrorNotFound
