package scoring

import "errors"

// ErrInvalidPosition is returned for finishing positions outside 1..4.
var ErrInvalidPosition = errors.New("invalid finishing position")
