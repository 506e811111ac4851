package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted    = errors.New("service not started")
	ErrNotComputed   = errors.New("configuration has not been computed yet")
	ErrUnknownPlayer = errors.New("player not rated under this configuration")
)
