package backend

import (
	"context"
	"errors"

	"cashbook/internal/config"
	"cashbook/internal/services"
	"cashbook/internal/storage"
)

// CleanupFunc releases a resource the ledger service does not own.
type CleanupFunc func() error

// Result is the storage backend plus the service options wired around it.
// The store and the publisher are closed by LedgerService.Close; Cleanup
// covers everything else.
type Result struct {
	Store   storage.Store
	Options []services.Option

	cleanups []CleanupFunc
}

// Cleanup runs the registered cleanups in reverse order.
func (r *Result) Cleanup() error {
	var errs []error
	for i := len(r.cleanups) - 1; i >= 0; i-- {
		if err := r.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.cleanups = nil
	return errors.Join(errs...)
}

// Factory builds ledger backends from the application config.
type Factory interface {
	CreateBackend(ctx context.Context, cfg *config.Config) (*Result, error)
}

// BackendType names a ledger storage backend.
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
