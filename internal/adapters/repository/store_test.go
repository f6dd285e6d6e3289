package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/okian/scorekeeper/internal/domain/address"
	"github.com/okian/scorekeeper/internal/domain/model"
	"github.com/okian/scorekeeper/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// storeFactories builds a fresh instance of every Store implementation.
func storeFactories() map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(*testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLStore(context.Background(), filepath.Join(t.TempDir(), "scores.db"))
			if err != nil {
				t.Fatalf("open sqlite store: %v", err)
			}
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func setToken(token string, score int32) UpdateFunc {
	return func(cur model.ScoreRecord, found bool) (model.ScoreRecord, error) {
		if !found {
			return model.ScoreRecord{token: score}, nil
		}
		cur[token] = score
		return cur, nil
	}
}

func TestStore_State(t *testing.T) {
	ctx := context.Background()
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)

			if _, err := s.LoadState(ctx); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound before save, got %v", err)
			}
			has, err := s.HasState(ctx)
			if err != nil || has {
				t.Fatalf("expected empty state slot, got has=%v err=%v", has, err)
			}

			want := model.State{Owner: "creator"}
			if err := s.SaveState(ctx, want); err != nil {
				t.Fatalf("save state: %v", err)
			}
			got, err := s.LoadState(ctx)
			if err != nil {
				t.Fatalf("load state: %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("state mismatch (-want +got):\n%s", diff)
			}
			if has, _ := s.HasState(ctx); !has {
				t.Error("expected state slot to be populated")
			}
		})
	}
}

func TestStore_UpdateScores(t *testing.T) {
	ctx := context.Background()
	addr := address.Addr("address_1")

	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)

			if _, err := s.LoadScores(ctx, addr); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound for unknown address, got %v", err)
			}

			var sawFound []bool
			tracking := func(fn UpdateFunc) UpdateFunc {
				return func(cur model.ScoreRecord, found bool) (model.ScoreRecord, error) {
					sawFound = append(sawFound, found)
					return fn(cur, found)
				}
			}

			if _, err := s.UpdateScores(ctx, addr, tracking(setToken("Mirror", 30))); err != nil {
				t.Fatalf("first update: %v", err)
			}
			if _, err := s.UpdateScores(ctx, addr, tracking(setToken("Arweave", -2))); err != nil {
				t.Fatalf("second update: %v", err)
			}
			got, err := s.UpdateScores(ctx, addr, tracking(setToken("Mirror", 45)))
			if err != nil {
				t.Fatalf("third update: %v", err)
			}

			want := model.ScoreRecord{"Mirror": 45, "Arweave": -2}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("returned record mismatch (-want +got):\n%s", diff)
			}
			loaded, err := s.LoadScores(ctx, addr)
			if err != nil {
				t.Fatalf("load scores: %v", err)
			}
			if diff := cmp.Diff(want, loaded); diff != "" {
				t.Errorf("stored record mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff([]bool{false, true, true}, sawFound); diff != "" {
				t.Errorf("found flags mismatch (-want +got):\n%s", diff)
			}

			if n, err := s.Count(ctx); err != nil || n != 1 {
				t.Errorf("expected count 1, got %d (err %v)", n, err)
			}
			if has, err := s.HasScores(ctx, addr); err != nil || !has {
				t.Errorf("expected record for %s, got has=%v err=%v", addr, has, err)
			}
		})
	}
}

func TestStore_UpdateScoresAbort(t *testing.T) {
	ctx := context.Background()
	addr := address.Addr("address_1")
	boom := errors.New("boom")

	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			if _, err := s.UpdateScores(ctx, addr, setToken("Mirror", 30)); err != nil {
				t.Fatalf("seed: %v", err)
			}

			_, err := s.UpdateScores(ctx, addr, func(cur model.ScoreRecord, _ bool) (model.ScoreRecord, error) {
				cur["Mirror"] = 999
				cur["Other"] = 1
				return nil, boom
			})
			if !errors.Is(err, boom) {
				t.Fatalf("expected fn error, got %v", err)
			}

			_, err = s.UpdateScores(ctx, addr, func(model.ScoreRecord, bool) (model.ScoreRecord, error) {
				return model.ScoreRecord{}, nil
			})
			if !errors.Is(err, ErrEmptyRecord) {
				t.Fatalf("expected ErrEmptyRecord, got %v", err)
			}

			got, err := s.LoadScores(ctx, addr)
			if err != nil {
				t.Fatalf("load scores: %v", err)
			}
			if diff := cmp.Diff(model.ScoreRecord{"Mirror": 30}, got); diff != "" {
				t.Errorf("aborted updates leaked (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStore_UpdateScoresDropsTokens(t *testing.T) {
	ctx := context.Background()
	addr := address.Addr("address_1")

	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			if _, err := s.UpdateScores(ctx, addr, func(model.ScoreRecord, bool) (model.ScoreRecord, error) {
				return model.ScoreRecord{"a": 1, "b": 2}, nil
			}); err != nil {
				t.Fatalf("seed: %v", err)
			}
			if _, err := s.UpdateScores(ctx, addr, func(model.ScoreRecord, bool) (model.ScoreRecord, error) {
				return model.ScoreRecord{"b": 3}, nil
			}); err != nil {
				t.Fatalf("replace: %v", err)
			}
			got, err := s.LoadScores(ctx, addr)
			if err != nil {
				t.Fatalf("load scores: %v", err)
			}
			if diff := cmp.Diff(model.ScoreRecord{"b": 3}, got); diff != "" {
				t.Errorf("record mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMemoryStore_Isolation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	addr := address.Addr("address_1")

	rec, err := s.UpdateScores(ctx, addr, setToken("Mirror", 30))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	rec["Mirror"] = 1

	loaded, err := s.LoadScores(ctx, addr)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	loaded["Mirror"] = 2

	again, _ := s.LoadScores(ctx, addr)
	if again["Mirror"] != 30 {
		t.Fatalf("caller mutation leaked into store: %v", again)
	}
}

func TestMemoryStore_ConcurrentMerge(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	addr := address.Addr("address_1")

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token := string(rune('a' + i%26)) + string(rune('a' + i/26))
			if _, err := s.UpdateScores(ctx, addr, setToken(token, int32(i))); err != nil {
				t.Errorf("update %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	got, err := s.LoadScores(ctx, addr)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != writers {
		t.Fatalf("expected %d tokens after concurrent merges, got %d", writers, len(got))
	}
}

func TestMemoryStore_Closed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := s.LoadState(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, err := s.UpdateScores(ctx, "address_1", setToken("x", 1)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, "memory", "")
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("expected *MemoryStore, got %T", s)
	}

	s, err = Open(ctx, "sqlite", filepath.Join(t.TempDir(), "open.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer func() { _ = s.Close() }()
	if _, ok := s.(*SQLStore); !ok {
		t.Errorf("expected *SQLStore, got %T", s)
	}

	if _, err := Open(ctx, "postgres", "dsn"); !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("expected ErrUnknownDriver, got %v", err)
	}
}

func TestSQLStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "persist.db")

	s, err := NewSQLStore(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.SaveState(ctx, model.State{Owner: "creator"}); err != nil {
		t.Fatalf("save state: %v", err)
	}
	if _, err := s.UpdateScores(ctx, "address_2", setToken("Mirror", 50)); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = NewSQLStore(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = s.Close() }()

	st, err := s.LoadState(ctx)
	if err != nil || st.Owner != "creator" {
		t.Fatalf("expected persisted owner, got %+v (err %v)", st, err)
	}
	rec, err := s.LoadScores(ctx, "address_2")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(model.ScoreRecord{"Mirror": 50}, rec); diff != "" {
		t.Errorf("persisted record mismatch (-want +got):\n%s", diff)
	}
}
