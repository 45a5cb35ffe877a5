// Package storage defines interfaces and implementations for mooring data storage backends.
package storage

import (
	"context"
	"sync"

	"github.com/oceanobs/moorproc/internal/types"
)

// StorageEngineInterface is an interface that provides a few standardized
// methods for various storage backends
type StorageEngineInterface interface {
	StartStorageEngine(context.Context, *sync.WaitGroup) chan<- types.RawSample
}
