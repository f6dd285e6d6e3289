package model

import "errors"

// Sentinel kinds for message decoding errors.
var (
	ErrUnknownMessage   = errors.New("unknown message")
	ErrAmbiguousMessage = errors.New("message sets more than one variant")
)
