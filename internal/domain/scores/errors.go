package scores

import "errors"

// Sentinel kinds for score table errors.
var (
	// ErrNotFound means the address has no score record.
	ErrNotFound = errors.New("score record not found")
	// ErrInvalidKey means the address has a record but not the requested token.
	ErrInvalidKey = errors.New("invalid key")
	// ErrInvalidToken means a token name was rejected before any write.
	ErrInvalidToken = errors.New("invalid token")
)
