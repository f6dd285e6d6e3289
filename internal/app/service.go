// Package service implements the contract entry points (instantiate,
// execute and query) on top of the domain packages and the persistent store.
//
// Every entry point runs on a single-consumer executor, so operations are
// applied one at a time in arrival order and each observes the store exactly
// as the previous one left it.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/okian/scorekeeper/internal/adapters/mq/worker"
	"github.com/okian/scorekeeper/internal/adapters/repository"
	"github.com/okian/scorekeeper/internal/domain/address"
	"github.com/okian/scorekeeper/internal/domain/dedupe"
	"github.com/okian/scorekeeper/internal/domain/model"
	"github.com/okian/scorekeeper/internal/domain/ownership"
	"github.com/okian/scorekeeper/internal/domain/scores"
	"github.com/okian/scorekeeper/pkg/logger"
	"github.com/okian/scorekeeper/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultQueueSize      = 1024
	defaultDedupeSize     = 100_000
	defaultMaxTokenLength = 64
)

// Operation names used for metrics and logs.
const (
	opInstantiate = "instantiate"
	opSetScore    = "set_score"
	opGetOwner    = "get_owner"
	opGetScore    = "get_score"
	opGetScores   = "get_scores"
)

// Caller identifies who sent a message. TxID is optional; when set, an
// execute with an already applied TxID is acknowledged without running.
type Caller struct {
	Sender string
	TxID   string
}

// Service composes the address validator, ownership guard, score manager
// and store behind the contract entry points.
type Service struct {
	mu sync.RWMutex

	store     repository.Store
	validator address.Validator
	scores    *scores.Manager
	deduper   dedupe.Deduper
	executor  *worker.Executor

	queueSize      int
	dedupeSize     int
	maxTokenLength int

	started bool
	stopped bool
	logger  logger.Logger
}

// New constructs a Service over store. The service owns the store from here
// on and closes it in Stop.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:          store,
		validator:      address.NewDefault(),
		queueSize:      defaultQueueSize,
		dedupeSize:     defaultDedupeSize,
		maxTokenLength: defaultMaxTokenLength,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	return s
}

// Start builds the executor and begins accepting operations. It fails with
// ErrStopped once Stop has run.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.stopped {
		return ErrStopped
	}

	s.scores = scores.NewManager(s.store, scores.WithMaxTokenLength(s.maxTokenLength))
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.executor = worker.NewExecutor(s.queueSize,
		worker.WithName("executor"),
		worker.WithLogger(s.logger.Named("executor")),
	)
	// The executor lives until Stop, not until the caller's context ends.
	s.executor.Start(context.WithoutCancel(ctx))
	s.started = true

	initialized, err := s.store.HasState(ctx)
	if err != nil {
		return fmt.Errorf("inspect store: %w", err)
	}
	metrics.SetInitialized(initialized)
	if n, err := s.store.Count(ctx); err == nil {
		metrics.UpdateScoreRecords(n)
	}

	s.logger.Info(ctx, "score service started",
		logger.Bool("initialized", initialized),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains queued operations and closes the store. A stopped service
// cannot be started again.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping score service...")

	var err error
	err = multierr.Append(err, s.executor.Stop(ctx))
	err = multierr.Append(err, s.store.Close())
	s.started = false
	s.stopped = true

	if err != nil {
		s.logger.Error(ctx, "score service stopped with errors", logger.Error(err))
		return err
	}
	s.logger.Info(ctx, "score service stopped")
	return nil
}

// Bootstrap instantiates the contract with owner unless it already has one.
// It reports whether this call performed the instantiation.
func (s *Service) Bootstrap(ctx context.Context, owner string) (bool, error) {
	if owner == "" {
		return false, nil
	}
	_, err := s.Instantiate(ctx, Caller{Sender: owner}, model.InstantiateMsg{Owner: owner})
	switch {
	case errors.Is(err, ErrAlreadyInitialized):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("bootstrap owner: %w", err)
	}
	return true, nil
}

// Instantiate validates the owner and records the configuration. It can
// succeed only once.
func (s *Service) Instantiate(ctx context.Context, caller Caller, msg model.InstantiateMsg) (model.Response, error) {
	var res model.Response
	err := s.do(ctx, opInstantiate, func(ctx context.Context) error {
		has, err := s.store.HasState(ctx)
		if err != nil {
			return fmt.Errorf("inspect state: %w", err)
		}
		if has {
			return ErrAlreadyInitialized
		}

		owner, err := s.validator.Validate(msg.Owner)
		if err != nil {
			return fmt.Errorf("owner: %w", err)
		}
		if err := s.store.SaveState(ctx, model.State{Owner: owner}); err != nil {
			return fmt.Errorf("save state: %w", err)
		}

		res = model.NewResponse().
			AddAttribute("method", opInstantiate).
			AddAttribute("owner", owner.String())
		return nil
	})
	if err != nil {
		s.logger.Warn(ctx, "instantiate rejected",
			logger.String("sender", caller.Sender),
			logger.String("owner", msg.Owner),
			logger.Error(err),
		)
		return model.Response{}, err
	}

	metrics.SetInitialized(true)
	s.logger.Info(ctx, "contract instantiated",
		logger.String("sender", caller.Sender),
		logger.String("owner", msg.Owner),
	)
	return res, nil
}

// Execute applies a mutation. Only the owner may execute; the target address
// is validated after the ownership check. A failure writes nothing.
func (s *Service) Execute(ctx context.Context, caller Caller, msg model.ExecuteMsg) (model.Response, error) {
	if err := msg.Validate(); err != nil {
		return model.Response{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	set := *msg.SetScore

	err := s.do(ctx, opSetScore, func(ctx context.Context) error {
		st, err := s.loadState(ctx)
		if err != nil {
			return err
		}
		if err := ownership.Authorize(address.Addr(caller.Sender), st.Owner); err != nil {
			metrics.RecordUnauthorized()
			return fmt.Errorf("sender %q: %w", caller.Sender, err)
		}

		if caller.TxID != "" && s.deduper.SeenAndRecord(ctx, caller.TxID) {
			metrics.RecordDuplicateTx()
			return ErrDuplicateTx
		}
		if err := s.setScore(ctx, set); err != nil {
			if caller.TxID != "" {
				s.deduper.Unrecord(ctx, caller.TxID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		s.logger.Warn(ctx, "set_score rejected",
			logger.String("sender", caller.Sender),
			logger.String("txID", caller.TxID),
			logger.String("address", set.Address),
			logger.Error(err),
		)
		return model.Response{}, err
	}

	s.logger.Debug(ctx, "score set",
		logger.String("address", set.Address),
		logger.String("token", set.Token),
		logger.Int64("score", int64(set.Score)),
	)
	return model.NewResponse().AddAttribute("method", opSetScore), nil
}

// setScore must run on the executor.
func (s *Service) setScore(ctx context.Context, set model.SetScore) error {
	addr, err := s.validator.Validate(set.Address)
	if err != nil {
		return fmt.Errorf("address: %w", err)
	}
	if _, err := s.scores.SetScore(ctx, addr, set.Token, set.Score); err != nil {
		return err
	}
	if n, err := s.store.Count(ctx); err == nil {
		metrics.UpdateScoreRecords(n)
	}
	return nil
}

// Query dispatches a tagged read and returns the matching response value:
// model.OwnerResponse, model.ScoreResponse or model.ScoresResponse.
func (s *Service) Query(ctx context.Context, msg model.QueryMsg) (any, error) {
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	switch {
	case msg.GetOwner != nil:
		return s.Owner(ctx)
	case msg.GetScore != nil:
		return s.Score(ctx, msg.GetScore.Address, msg.GetScore.Token)
	default:
		return s.Scores(ctx, msg.GetScores.Address)
	}
}

// Owner returns the configured owner.
func (s *Service) Owner(ctx context.Context) (model.OwnerResponse, error) {
	var res model.OwnerResponse
	err := s.do(ctx, opGetOwner, func(ctx context.Context) error {
		st, err := s.loadState(ctx)
		if err != nil {
			return err
		}
		res = model.OwnerResponse{Owner: st.Owner.String()}
		return nil
	})
	return res, err
}

// Score returns the score stored under token for the raw address.
func (s *Service) Score(ctx context.Context, raw, token string) (model.ScoreResponse, error) {
	var res model.ScoreResponse
	err := s.do(ctx, opGetScore, func(ctx context.Context) error {
		if _, err := s.loadState(ctx); err != nil {
			return err
		}
		addr, err := s.validator.Validate(raw)
		if err != nil {
			return fmt.Errorf("address: %w", err)
		}
		score, err := s.scores.GetScore(ctx, addr, token)
		if err != nil {
			return err
		}
		res = model.ScoreResponse{Address: addr.String(), Token: token, Score: score}
		return nil
	})
	return res, err
}

// Scores returns every token score for the raw address.
func (s *Service) Scores(ctx context.Context, raw string) (model.ScoresResponse, error) {
	var res model.ScoresResponse
	err := s.do(ctx, opGetScores, func(ctx context.Context) error {
		if _, err := s.loadState(ctx); err != nil {
			return err
		}
		addr, err := s.validator.Validate(raw)
		if err != nil {
			return fmt.Errorf("address: %w", err)
		}
		rec, err := s.scores.GetScores(ctx, addr)
		if err != nil {
			return err
		}
		res = model.ScoresResponse{Address: addr.String(), Scores: rec}
		return nil
	})
	return res, err
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":        s.started,
		"queueSize":      s.queueSize,
		"dedupeSize":     s.dedupeSize,
		"maxTokenLength": s.maxTokenLength,
	}
	if !s.started {
		return stats
	}

	pending := s.executor.Pending(ctx)
	stats["queueLength"] = pending
	stats["seenTxs"] = s.deduper.Size()
	metrics.UpdateQueueSize(pending)

	if st, err := s.store.LoadState(ctx); err == nil {
		stats["initialized"] = true
		stats["owner"] = st.Owner.String()
	} else {
		stats["initialized"] = false
	}
	if n, err := s.store.Count(ctx); err == nil {
		stats["scoreRecords"] = n
		metrics.UpdateScoreRecords(n)
	}
	return stats
}

// do runs fn on the executor and records the outcome.
func (s *Service) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	s.mu.RLock()
	started, exec := s.started, s.executor
	s.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}

	start := time.Now()
	err := exec.Submit(ctx, op, fn)
	switch {
	case errors.Is(err, worker.ErrBusy):
		err = fmt.Errorf("%w: %w", ErrBusy, err)
	case errors.Is(err, worker.ErrStopped):
		err = fmt.Errorf("%w: %w", ErrNotStarted, err)
	}

	metrics.RecordOperation(op, outcome(err))
	metrics.RecordOperationLatency(op, float64(time.Since(start).Microseconds())/1000)
	return err
}

func (s *Service) loadState(ctx context.Context) (model.State, error) {
	st, err := s.store.LoadState(ctx)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return model.State{}, ErrUninitialized
	case err != nil:
		return model.State{}, fmt.Errorf("load state: %w", err)
	}
	return st, nil
}

// outcome buckets an operation error for the operations counter.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDuplicateTx):
		return "duplicate"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ownership.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, address.ErrInvalidAddress),
		errors.Is(err, scores.ErrNotFound),
		errors.Is(err, scores.ErrInvalidKey),
		errors.Is(err, scores.ErrInvalidToken),
		errors.Is(err, ErrUninitialized),
		errors.Is(err, ErrAlreadyInitialized),
		errors.Is(err, ErrBadRequest):
		return "rejected"
	default:
		return "error"
	}
}
