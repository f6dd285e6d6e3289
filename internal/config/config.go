// Package config defines service configuration and how it is loaded.
package config

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StoreDriver selects the persistent store: memory or sqlite.
	StoreDriver string `koanf:"store_driver"`

	// SQLiteDSN is the database path used by the sqlite driver.
	SQLiteDSN string `koanf:"sqlite_dsn"`

	// Owner, when set, instantiates the contract at startup if the store
	// holds no configuration yet.
	Owner string `koanf:"owner"`

	// AddressMinLength and AddressMaxLength bound accepted addresses.
	AddressMinLength int `koanf:"address_min_length"`
	AddressMaxLength int `koanf:"address_max_length"`

	// AddressPrefix, when set, is required on every address.
	AddressPrefix string `koanf:"address_prefix"`

	// QueueSize bounds the operation queue in front of the executor.
	QueueSize int `koanf:"queue_size"`

	// DedupeSize sets how many transaction IDs are remembered for replay
	// protection. Zero or less remembers all of them.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxTokenLength bounds token names in bytes.
	MaxTokenLength int `koanf:"max_token_length"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		Addr:             ":9080",
		StoreDriver:      "memory",
		SQLiteDSN:        "scorekeeper.db",
		AddressMinLength: 3,
		AddressMaxLength: 64,
		QueueSize:        1024,
		DedupeSize:       100_000,
		MaxTokenLength:   64,
	}
}
