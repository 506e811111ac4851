package rating

// Engine defaults.
const (
	// DefaultSigmaFloorRatio bounds sigma from below as a share of initialSigma.
	DefaultSigmaFloorRatio = 0.1
	// DefaultKappa is the smallest factor a single game may shrink variance by.
	DefaultKappa = 1e-4
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithSigmaFloorRatio sets the variance floor as a share of initialSigma.
func WithSigmaFloorRatio(r float64) Option {
	return func(e *Engine) {
		if r > 0 && r < 1 {
			e.sigmaFloorRatio = r
		}
	}
}

// WithKappa sets the lower bound of the per game variance shrink factor.
func WithKappa(k float64) Option {
	return func(e *Engine) {
		if k > 0 && k < 1 {
			e.kappa = k
		}
	}
}
