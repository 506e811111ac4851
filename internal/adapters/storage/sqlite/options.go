package sqlite

import "github.com/okian/mjrating/pkg/logger"

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for schema and write events.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMaxOpenConns overrides the connection pool size. SQLite serialises
// writers, so the default is a single connection.
func WithMaxOpenConns(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxOpen = n
		}
	}
}
