// Package storage implements the persistence port: a generic object store
// keyed by kind+id. Two backends are provided, an in-memory store for tests
// and development and a Postgres store for production. Objects are plain
// structs serialized as JSON.
package storage

import (
	"context"

	"github.com/dmitrijs2005/keyvault/internal/common"
)

// Object is anything the store can persist. Kind partitions the key space
// by aggregate type; ObjectID must be unique within a kind.
type Object interface {
	Kind() string
	ObjectID() string
}

// Storage is the persistence port. Get returns common.ErrorNotFound when the
// object is absent; implementations must not invent other sentinel errors
// for that case.
//
// SaveAll persists several records as a unit. Backends with transactions
// make it all-or-nothing; backends without apply writes in order and a
// mid-batch failure may leave earlier writes applied. Callers that need
// atomicity should document which backend they assume.
type Storage interface {
	Get(ctx context.Context, obj Object) error
	Save(ctx context.Context, obj Object) error
	SaveAll(ctx context.Context, objs ...Object) error
	Delete(ctx context.Context, obj Object) error
}

// ErrNotFound is re-exported for call-site readability.
var ErrNotFound = common.ErrorNotFound
