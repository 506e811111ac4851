package sqlite

import "errors"

var (
	// ErrDuplicateGame is returned when a game id is already stored.
	ErrDuplicateGame = errors.New("game already stored")
	// ErrInvalidGame is returned for records the schema cannot hold.
	ErrInvalidGame = errors.New("invalid game record")
)
