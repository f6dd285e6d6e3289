// Package scores manages per-address score records.
//
// Every address maps token names to independent scores. Writing a token merges
// it into the existing record, leaving the other tokens untouched; the unnamed
// token DefaultToken carries the plain per-address score.
package scores

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/scorekeeper/internal/adapters/repository"
	"github.com/okian/scorekeeper/internal/domain/address"
	"github.com/okian/scorekeeper/internal/domain/model"
)

// DefaultToken is the token used when a caller does not name one.
const DefaultToken = ""

const defaultMaxTokenLength = 64

// Table is the slice of the persistent store the manager needs.
type Table interface {
	LoadScores(ctx context.Context, addr address.Addr) (model.ScoreRecord, error)
	UpdateScores(ctx context.Context, addr address.Addr, fn repository.UpdateFunc) (model.ScoreRecord, error)
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithMaxTokenLength bounds token names in bytes.
func WithMaxTokenLength(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxTokenLength = n
		}
	}
}

// Manager reads and writes score records through a Table.
type Manager struct {
	table          Table
	maxTokenLength int
}

// NewManager creates a Manager over table.
func NewManager(table Table, opts ...Option) *Manager {
	m := &Manager{
		table:          table,
		maxTokenLength: defaultMaxTokenLength,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetScore stores score under token for addr and returns the resulting record.
// An absent record is created with the single entry; a present one is merged.
// The read and the write happen in one atomic store update.
func (m *Manager) SetScore(ctx context.Context, addr address.Addr, token string, score int32) (model.ScoreRecord, error) {
	if len(token) > m.maxTokenLength {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidToken, len(token), m.maxTokenLength)
	}
	rec, err := m.table.UpdateScores(ctx, addr, func(cur model.ScoreRecord, found bool) (model.ScoreRecord, error) {
		if !found {
			return model.ScoreRecord{token: score}, nil
		}
		cur[token] = score
		return cur, nil
	})
	if err != nil {
		return nil, fmt.Errorf("set score for %s: %w", addr, err)
	}
	return rec, nil
}

// GetScore returns the score stored under token for addr. It fails with
// ErrNotFound when addr has no record and ErrInvalidKey when the record has
// no such token.
func (m *Manager) GetScore(ctx context.Context, addr address.Addr, token string) (int32, error) {
	rec, err := m.load(ctx, addr)
	if err != nil {
		return 0, err
	}
	score, ok := rec[token]
	if !ok {
		return 0, fmt.Errorf("%w: token %q for %s", ErrInvalidKey, token, addr)
	}
	return score, nil
}

// Tokens returns the sorted token names stored for addr or ErrNotFound.
func (m *Manager) Tokens(ctx context.Context, addr address.Addr) ([]string, error) {
	rec, err := m.load(ctx, addr)
	if err != nil {
		return nil, err
	}
	return rec.Tokens(), nil
}

// GetScores returns every token score for addr or ErrNotFound.
func (m *Manager) GetScores(ctx context.Context, addr address.Addr) (model.ScoreRecord, error) {
	return m.load(ctx, addr)
}

func (m *Manager) load(ctx context.Context, addr address.Addr) (model.ScoreRecord, error) {
	rec, err := m.table.LoadScores(ctx, addr)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("%w: %s", ErrNotFound, addr)
	case err != nil:
		return nil, fmt.Errorf("load scores for %s: %w", addr, err)
	}
	return rec, nil
}
