package repository

import "errors"

// Sentinel kinds for snapshot store errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidLimit    = errors.New("invalid leaderboard limit")
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)
