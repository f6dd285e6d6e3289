package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okian/scorekeeper/internal/domain/address"
	"github.com/okian/scorekeeper/internal/domain/model"
	"github.com/okian/scorekeeper/pkg/metrics"
)

const memoryDriver = "memory"

// MemoryStore is an in-process Store. Records are copied on the way in and
// out so callers never alias stored maps.
type MemoryStore struct {
	mu     sync.Mutex
	state  *model.State
	scores map[address.Addr]model.ScoreRecord
	closed bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{scores: make(map[address.Addr]model.ScoreRecord)}
}

// LoadState implements Store.
func (s *MemoryStore) LoadState(ctx context.Context) (st model.State, err error) {
	defer observe(memoryDriver, "load_state", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.State{}, ErrClosed
	}
	if s.state == nil {
		return model.State{}, ErrNotFound
	}
	return *s.state, nil
}

// HasState implements Store.
func (s *MemoryStore) HasState(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	return s.state != nil, nil
}

// SaveState implements Store.
func (s *MemoryStore) SaveState(ctx context.Context, st model.State) (err error) {
	defer observe(memoryDriver, "save_state", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.state = &st
	return nil
}

// LoadScores implements Store.
func (s *MemoryStore) LoadScores(ctx context.Context, addr address.Addr) (rec model.ScoreRecord, err error) {
	defer observe(memoryDriver, "load_scores", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	cur, ok := s.scores[addr]
	if !ok {
		return nil, ErrNotFound
	}
	return cur.Clone(), nil
}

// HasScores implements Store.
func (s *MemoryStore) HasScores(ctx context.Context, addr address.Addr) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	_, ok := s.scores[addr]
	return ok, nil
}

// UpdateScores implements Store. fn runs under the store lock.
func (s *MemoryStore) UpdateScores(ctx context.Context, addr address.Addr, fn UpdateFunc) (rec model.ScoreRecord, err error) {
	defer observe(memoryDriver, "update_scores", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	cur, found := s.scores[addr]
	next, err := fn(cur.Clone(), found)
	if err != nil {
		return nil, err
	}
	if len(next) == 0 {
		return nil, ErrEmptyRecord
	}
	s.scores[addr] = next.Clone()
	return next, nil
}

// Count implements Store.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	return len(s.scores), nil
}

// Close implements Store. Further calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// observe records latency and, for failures other than a missing key, an
// error count. It is meant to be deferred with a pointer to the named error.
func observe(driver, op string, start time.Time, errp *error) {
	metrics.RecordStoreLatency(driver, op, float64(time.Since(start).Microseconds())/1000)
	if errp != nil && *errp != nil && !errors.Is(*errp, ErrNotFound) {
		metrics.RecordStoreError(driver, op)
	}
}
