// Package repository defines the persistent store and its implementations.
package repository

import (
	"context"
	"fmt"

	"github.com/okian/scorekeeper/internal/domain/address"
	"github.com/okian/scorekeeper/internal/domain/model"
)

// UpdateFunc computes the next record for an address from the current one.
// found is false and current is nil when the address has no record yet.
// Returning an error aborts the update with nothing written.
type UpdateFunc func(current model.ScoreRecord, found bool) (model.ScoreRecord, error)

// Store is the durable substrate: a singleton state slot plus a table of
// score records keyed by address. Reads of missing keys fail with ErrNotFound.
type Store interface {
	// LoadState returns the configuration or ErrNotFound before instantiation.
	LoadState(ctx context.Context) (model.State, error)
	// HasState reports whether the configuration slot is populated.
	HasState(ctx context.Context) (bool, error)
	// SaveState writes the configuration slot.
	SaveState(ctx context.Context, st model.State) error

	// LoadScores returns a copy of the record for addr or ErrNotFound.
	LoadScores(ctx context.Context, addr address.Addr) (model.ScoreRecord, error)
	// HasScores reports whether addr has a record.
	HasScores(ctx context.Context, addr address.Addr) (bool, error)
	// UpdateScores atomically reads the record for addr, applies fn and writes
	// the result back. No other write to addr can interleave.
	UpdateScores(ctx context.Context, addr address.Addr, fn UpdateFunc) (model.ScoreRecord, error)

	// Count returns the number of addresses holding a record.
	Count(ctx context.Context) (int, error)

	Close() error
}

// Open returns the Store selected by driver: "memory" or "sqlite".
func Open(ctx context.Context, driver, dsn string, opts ...Option) (Store, error) {
	switch driver {
	case memoryDriver:
		return NewMemoryStore(), nil
	case sqliteDriver:
		return NewSQLStore(ctx, dsn, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
