package address

import "errors"

// Sentinel kinds for address validation errors.
var (
	ErrInvalidAddress = errors.New("invalid address")
)
