package ratingconfig

import "errors"

// Sentinel kinds for configuration errors.
var (
	ErrMalformedConfiguration = errors.New("malformed configuration")
	ErrUnknownConfiguration   = errors.New("unknown configuration")
	ErrInvalidHashFormat      = errors.New("invalid configuration hash format")
	ErrAmbiguousHash          = errors.New("ambiguous short configuration hash")
)
