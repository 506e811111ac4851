package repository

// Option applies a configuration option to the TreapStore.
type Option func(*TreapStore)

// WithTopCacheSize sets how many leaderboard rows are materialized at
// publish time for fast TopN reads.
func WithTopCacheSize(n int) Option {
	return func(s *TreapStore) {
		if n > 0 {
			s.topCacheSize = n
		}
	}
}
