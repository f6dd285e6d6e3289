package repository

import (
	"github.com/okian/scorekeeper/pkg/logger"
)

// Option applies a configuration option to a store.
type Option func(*options)

type options struct {
	logger       logger.Logger
	maxOpenConns int
}

func defaultOptions() options {
	return options{maxOpenConns: 1}
}

// WithLogger sets the logger used for store lifecycle messages.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMaxOpenConns bounds the SQL connection pool. SQLite allows a single
// writer, so values above 1 only help read-heavy file databases.
func WithMaxOpenConns(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxOpenConns = n
		}
	}
}
