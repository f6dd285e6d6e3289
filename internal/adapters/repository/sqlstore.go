package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/multierr"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/okian/scorekeeper/internal/domain/address"
	"github.com/okian/scorekeeper/internal/domain/model"
	"github.com/okian/scorekeeper/pkg/logger"
)

const sqliteDriver = "sqlite"

func init() { //nolint:gochecknoinits // teach sqlx the modernc driver's bindvar style
	sqlx.BindDriver(sqliteDriver, sqlx.QUESTION)
}

const schemaSQL = `
create table if not exists state (
    id    integer primary key check (id = 1),
    owner text not null
);
create table if not exists scores (
    address text    not null,
    token   text    not null,
    score   integer not null,
    primary key (address, token)
);
`

const (
	saveStateSQL = `
insert into state (id, owner) values (1, :owner)
on conflict (id) do update set owner = excluded.owner
`

	upsertScoreSQL = `
insert into scores (address, token, score) values (:address, :token, :score)
on conflict (address, token) do update set score = excluded.score
`

	loadStateSQL   = `select owner from state where id = 1`
	hasStateSQL    = `select count(*) from state where id = 1`
	loadScoresSQL  = `select token, score from scores where address = ?`
	hasScoresSQL   = `select count(*) from scores where address = ?`
	countSQL       = `select count(distinct address) from scores`
	deleteScoreSQL = `delete from scores where address = ? and token = ?`
)

type stateRow struct {
	Owner string `db:"owner"`
}

type scoreRow struct {
	Address string `db:"address"`
	Token   string `db:"token"`
	Score   int32  `db:"score"`
}

// SQLStore is a Store backed by SQLite through sqlx. A score record is the set
// of rows sharing an address; it exists while at least one row does.
type SQLStore struct {
	db     *sqlx.DB
	logger logger.Logger
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore opens dsn with the pure-Go SQLite driver and applies the schema.
func NewSQLStore(ctx context.Context, dsn string, opts ...Option) (*SQLStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get().Named("store")
	}

	db, err := sqlx.ConnectContext(ctx, sqliteDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	db.SetMaxOpenConns(o.maxOpenConns)

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return nil, multierr.Append(fmt.Errorf("apply schema: %w", err), db.Close())
	}

	o.logger.Info(ctx, "sqlite store ready", logger.String("dsn", dsn))
	return &SQLStore{db: db, logger: o.logger}, nil
}

// LoadState implements Store.
func (s *SQLStore) LoadState(ctx context.Context) (st model.State, err error) {
	defer observe(sqliteDriver, "load_state", time.Now(), &err)

	var row stateRow
	if err := s.db.GetContext(ctx, &row, loadStateSQL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.State{}, ErrNotFound
		}
		return model.State{}, fmt.Errorf("could not execute loadStateSQL: %w", err)
	}
	return model.State{Owner: address.Addr(row.Owner)}, nil
}

// HasState implements Store.
func (s *SQLStore) HasState(ctx context.Context) (bool, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, hasStateSQL); err != nil {
		return false, fmt.Errorf("could not execute hasStateSQL: %w", err)
	}
	return n > 0, nil
}

// SaveState implements Store.
func (s *SQLStore) SaveState(ctx context.Context, st model.State) (err error) {
	defer observe(sqliteDriver, "save_state", time.Now(), &err)

	if _, err := s.db.NamedExecContext(ctx, saveStateSQL, stateRow{Owner: st.Owner.String()}); err != nil {
		return fmt.Errorf("could not execute saveStateSQL: %w", err)
	}
	return nil
}

// LoadScores implements Store.
func (s *SQLStore) LoadScores(ctx context.Context, addr address.Addr) (rec model.ScoreRecord, err error) {
	defer observe(sqliteDriver, "load_scores", time.Now(), &err)
	return loadRecord(ctx, s.db, addr)
}

// HasScores implements Store.
func (s *SQLStore) HasScores(ctx context.Context, addr address.Addr) (bool, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, hasScoresSQL, addr.String()); err != nil {
		return false, fmt.Errorf("could not execute hasScoresSQL: %w", err)
	}
	return n > 0, nil
}

// UpdateScores implements Store. The read, fn and the writes share one
// transaction, so a failure anywhere leaves the record unchanged.
func (s *SQLStore) UpdateScores(ctx context.Context, addr address.Addr, fn UpdateFunc) (rec model.ScoreRecord, err error) {
	defer observe(sqliteDriver, "update_scores", time.Now(), &err)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); !errors.Is(rbErr, sql.ErrTxDone) {
			err = multierr.Append(err, rbErr)
		}
	}()

	cur, err := loadRecord(ctx, tx, addr)
	found := err == nil
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	next, err := fn(cur.Clone(), found)
	if err != nil {
		return nil, err
	}
	if len(next) == 0 {
		return nil, ErrEmptyRecord
	}

	for token := range cur {
		if _, keep := next[token]; keep {
			continue
		}
		if _, err = tx.ExecContext(ctx, deleteScoreSQL, addr.String(), token); err != nil {
			return nil, fmt.Errorf("could not execute deleteScoreSQL: %w", err)
		}
	}
	for _, token := range next.Tokens() {
		if score, ok := cur[token]; ok && score == next[token] {
			continue
		}
		row := scoreRow{Address: addr.String(), Token: token, Score: next[token]}
		if _, err = tx.NamedExecContext(ctx, upsertScoreSQL, row); err != nil {
			return nil, fmt.Errorf("could not execute upsertScoreSQL: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return next, nil
}

// Count implements Store.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, countSQL); err != nil {
		return 0, fmt.Errorf("could not execute countSQL: %w", err)
	}
	return n, nil
}

// Close implements Store.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func loadRecord(ctx context.Context, q sqlx.QueryerContext, addr address.Addr) (model.ScoreRecord, error) {
	var rows []scoreRow
	if err := sqlx.SelectContext(ctx, q, &rows, loadScoresSQL, addr.String()); err != nil {
		return nil, fmt.Errorf("could not execute loadScoresSQL: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	rec := make(model.ScoreRecord, len(rows))
	for _, r := range rows {
		rec[r.Token] = r.Score
	}
	return rec, nil
}
