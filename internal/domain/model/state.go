// Package model contains domain models passed between layers.
package model

import (
	"sort"

	"github.com/okian/scorekeeper/internal/domain/address"
)

// State is the singleton configuration committed at instantiation.
type State struct {
	Owner address.Addr `json:"owner"`
}

// ScoreRecord maps token names to scores for one address. The unnamed token ""
// holds the score written without a token.
type ScoreRecord map[string]int32

// Clone returns an independent copy of r.
func (r ScoreRecord) Clone() ScoreRecord {
	if r == nil {
		return nil
	}
	out := make(ScoreRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Tokens returns the token names of r in ascending order.
func (r ScoreRecord) Tokens() []string {
	tokens := make([]string, 0, len(r))
	for k := range r {
		tokens = append(tokens, k)
	}
	sort.Strings(tokens)
	return tokens
}
