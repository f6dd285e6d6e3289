// Package address validates raw strings into canonical account identities.
package address

import (
	"fmt"
	"strings"
)

const (
	defaultMinLength = 3
	defaultMaxLength = 64
)

// Addr is a validated, canonical address. Two Addr values name the same
// account exactly when they are equal.
type Addr string

// String returns the canonical form.
func (a Addr) String() string { return string(a) }

// Validator turns a raw string into an Addr or rejects it with an error
// wrapping ErrInvalidAddress.
type Validator interface {
	Validate(raw string) (Addr, error)
}

// Default is the built-in Validator. It accepts lowercase ASCII letters,
// digits, '_', '-' and '.', bounded in length, and refuses anything that is not
// already in canonical form instead of normalizing it.
type Default struct {
	minLength int
	maxLength int
	prefix    string
}

var _ Validator = (*Default)(nil)

// NewDefault creates the default validator.
func NewDefault(opts ...Option) *Default {
	d := &Default{
		minLength: defaultMinLength,
		maxLength: defaultMaxLength,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Validate implements Validator.
func (d *Default) Validate(raw string) (Addr, error) {
	switch {
	case len(raw) < d.minLength:
		return "", invalid(raw, "too short")
	case len(raw) > d.maxLength:
		return "", invalid(raw, "too long")
	case strings.ToLower(raw) != raw:
		return "", invalid(raw, "not normalized")
	case d.prefix != "" && !strings.HasPrefix(raw, d.prefix):
		return "", invalid(raw, "missing prefix "+d.prefix)
	}
	for _, r := range raw {
		if !allowed(r) {
			return "", invalid(raw, fmt.Sprintf("illegal character %q", r))
		}
	}
	return Addr(raw), nil
}

func allowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case r == '_', r == '-', r == '.':
		return true
	}
	return false
}

func invalid(raw, reason string) error {
	return fmt.Errorf("%w %q: %s", ErrInvalidAddress, raw, reason)
}
