// Package smoke replays the reference ownership scenario against a live
// server and verifies every reply.
package smoke

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/scorekeeper/internal/client"
	"github.com/okian/scorekeeper/pkg/logger"
)

// ErrMismatch is returned when the server answers differently than expected.
var ErrMismatch = errors.New("smoke: unexpected result")

// Default scenario values.
const (
	DefaultOwner    = "creator"
	DefaultIntruder = "intruder"
	DefaultToken    = "Mirror"
)

// Config describes one scenario run.
type Config struct {
	// Owner instantiates the contract. If the server already has an owner,
	// it must be this one.
	Owner string
	// Intruder is a non-owner identity whose writes must be refused.
	Intruder string
	// Token names the score entry written for each address.
	Token string
	// AddressPrefix is prepended to the generated addresses. Each run uses
	// fresh addresses so repeated runs do not collide.
	AddressPrefix string
}

// Report summarizes a successful run.
type Report struct {
	Instantiated bool
	Addresses    []string
	Steps        int
	Duration     time.Duration
}

// Run executes the scenario: instantiate as the owner, write 30 and 50 to
// two addresses, read them back, confirm an intruder is refused without
// changing anything, and confirm a replayed transaction is not re-applied.
func Run(ctx context.Context, c *client.Client, cfg Config) (Report, error) {
	cfg = withDefaults(cfg)
	log := logger.Get().Named("smoke")
	start := time.Now()
	report := Report{}

	step := func(name string, fn func() error) error {
		report.Steps++
		if err := fn(); err != nil {
			log.Error(ctx, "step failed", logger.String("step", name), logger.Error(err))
			return fmt.Errorf("%s: %w", name, err)
		}
		log.Info(ctx, "step passed", logger.String("step", name))
		return nil
	}

	runID := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	addr1 := cfg.AddressPrefix + "a1-" + runID
	addr2 := cfg.AddressPrefix + "a2-" + runID
	report.Addresses = []string{addr1, addr2}

	owner := c.As(cfg.Owner)
	intruder := c.As(cfg.Intruder)

	steps := []struct {
		name string
		fn   func() error
	}{
		{"health", func() error { return c.Health(ctx) }},
		{"instantiate", func() error {
			_, err := owner.Instantiate(ctx, cfg.Owner)
			switch {
			case err == nil:
				report.Instantiated = true
				return nil
			case client.Code(err) == "already_initialized":
				return nil
			default:
				return err
			}
		}},
		{"owner", func() error {
			res, err := c.Owner(ctx)
			if err != nil {
				return err
			}
			return expect("owner", res.Owner, cfg.Owner)
		}},
		{"set_score_1", func() error {
			_, err := owner.SetScore(ctx, uuid.NewString(), addr1, cfg.Token, 30)
			return err
		}},
		{"set_score_2", func() error {
			_, err := owner.SetScore(ctx, uuid.NewString(), addr2, cfg.Token, 50)
			return err
		}},
		{"get_score_1", func() error { return expectScore(ctx, c, addr1, cfg.Token, 30) }},
		{"get_score_2", func() error { return expectScore(ctx, c, addr2, cfg.Token, 50) }},
		{"unauthorized", func() error {
			_, err := intruder.SetScore(ctx, uuid.NewString(), addr1, cfg.Token, -1)
			if code := client.Code(err); code != "unauthorized" {
				return fmt.Errorf("%w: intruder write returned code %q (err=%v)", ErrMismatch, code, err)
			}
			return expectScore(ctx, c, addr1, cfg.Token, 30)
		}},
		{"replay", func() error {
			txID := uuid.NewString()
			if _, err := owner.SetScore(ctx, txID, addr2, cfg.Token, 51); err != nil {
				return err
			}
			ack, err := owner.SetScore(ctx, txID, addr2, cfg.Token, 52)
			if err != nil {
				return err
			}
			if !ack.Duplicate {
				return fmt.Errorf("%w: replayed transaction was applied again", ErrMismatch)
			}
			return expectScore(ctx, c, addr2, cfg.Token, 51)
		}},
	}

	for _, s := range steps {
		if err := step(s.name, s.fn); err != nil {
			return report, err
		}
	}

	report.Duration = time.Since(start)
	log.Info(ctx, "smoke scenario passed",
		logger.Int("steps", report.Steps),
		logger.Bool("instantiated", report.Instantiated),
		logger.String("duration", report.Duration.String()))
	return report, nil
}

func withDefaults(cfg Config) Config {
	if cfg.Owner == "" {
		cfg.Owner = DefaultOwner
	}
	if cfg.Intruder == "" {
		cfg.Intruder = DefaultIntruder
	}
	if cfg.Token == "" {
		cfg.Token = DefaultToken
	}
	return cfg
}

func expectScore(ctx context.Context, c *client.Client, addr, token string, want int32) error {
	res, err := c.Score(ctx, addr, token)
	if err != nil {
		return err
	}
	return expect(addr+"/"+token, res.Score, want)
}

func expect[T comparable](what string, got, want T) error {
	if got != want {
		return fmt.Errorf("%w: %s = %v, want %v", ErrMismatch, what, got, want)
	}
	return nil
}
