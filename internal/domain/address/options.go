package address

// Option applies a configuration option to the Default validator.
type Option func(*Default)

// WithLengthRange sets the accepted address length bounds (inclusive).
func WithLengthRange(minLength, maxLength int) Option {
	return func(d *Default) {
		if minLength > 0 && maxLength >= minLength {
			d.minLength = minLength
			d.maxLength = maxLength
		}
	}
}

// WithPrefix requires every address to start with prefix.
func WithPrefix(prefix string) Option {
	return func(d *Default) {
		d.prefix = prefix
	}
}
