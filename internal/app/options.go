package service

import (
	"github.com/okian/scorekeeper/internal/domain/address"
	"github.com/okian/scorekeeper/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithValidator replaces the default address validator.
func WithValidator(v address.Validator) Option {
	return func(s *Service) {
		if v != nil {
			s.validator = v
		}
	}
}

// WithQueueSize sets the maximum number of operations waiting to run.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many transaction IDs are remembered. Zero or less
// remembers every ID.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		s.dedupeSize = size
	}
}

// WithMaxTokenLength bounds token names in bytes.
func WithMaxTokenLength(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxTokenLength = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
