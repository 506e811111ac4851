package rating

import "errors"

// Sentinel kinds for replay errors.
var (
	ErrDegenerateGame = errors.New("degenerate game")
	ErrDuplicateGame  = errors.New("duplicate game id")
)
