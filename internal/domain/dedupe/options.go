package dedupe

// Option applies a configuration option to the in-memory deduper.
type Option func(*inMemoryDeduper)

// WithMaxSize caps the number of keys tracked at once. Keys offered while
// the set is full are not recorded, so callers never coalesce onto them.
// Values <= 0 leave the set unbounded.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}
