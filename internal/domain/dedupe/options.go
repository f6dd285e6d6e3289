package dedupe

// Option applies a configuration option to the in-memory Deduper.
type Option func(*txLedger)

// WithMaxSize sets how many IDs are remembered. Zero or less keeps every ID.
func WithMaxSize(maxSize int) Option {
	return func(d *txLedger) {
		d.maxSize = maxSize
	}
}
