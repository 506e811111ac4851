// Package ratingconfig defines the versioned rating configuration and its
// content hash. A configuration is an immutable value identified only by
// Hash(cfg); two values that differ in any field hash differently.
package ratingconfig

import (
	"fmt"
	"math"
	"time"
)

// DateLayout is the calendar date format used by TimeRange.
const DateLayout = "2006-01-02"

// Season defaults.
const (
	DefaultInitialMu        = 25.0
	DefaultInitialSigma     = 8.33
	DefaultConfidenceFactor = 2.0
	DefaultDecayRate        = 0.02
	DefaultOka              = 20000
	DefaultDivisor          = 40.0
	DefaultWeightMin        = 0.5
	DefaultWeightMax        = 1.5
	DefaultMinGames         = 8
	DefaultDropWorst        = 2
)

// TimeRange selects the games of a season. Empty dates are unbounded.
type TimeRange struct {
	StartDate string `json:"startDate" koanf:"startDate" toml:"startDate"`
	EndDate   string `json:"endDate" koanf:"endDate" toml:"endDate"`
	Name      string `json:"name" koanf:"name" toml:"name"`
}

// Rating holds the skill prior and dynamics. Beta and Tau are optional; zero
// selects the defaults derived from the prior.
type Rating struct {
	InitialMu        float64 `json:"initialMu" koanf:"initialMu" toml:"initialMu"`
	InitialSigma     float64 `json:"initialSigma" koanf:"initialSigma" toml:"initialSigma"`
	ConfidenceFactor float64 `json:"confidenceFactor" koanf:"confidenceFactor" toml:"confidenceFactor"`
	DecayRate        float64 `json:"decayRate" koanf:"decayRate" toml:"decayRate"`
	Beta             float64 `json:"beta,omitempty" koanf:"beta" toml:"beta"`
	Tau              float64 `json:"tau,omitempty" koanf:"tau" toml:"tau"`
}

// Scoring is the oka and the uma table indexed by finishing position.
type Scoring struct {
	Oka int    `json:"oka" koanf:"oka" toml:"oka"`
	Uma [4]int `json:"uma" koanf:"uma" toml:"uma"`
}

// Weights bounds the margin of victory multiplier.
type Weights struct {
	Divisor float64 `json:"divisor" koanf:"divisor" toml:"divisor"`
	Min     float64 `json:"min" koanf:"min" toml:"min"`
	Max     float64 `json:"max" koanf:"max" toml:"max"`
}

// Qualification is the leaderboard eligibility rule.
type Qualification struct {
	MinGames  int `json:"minGames" koanf:"minGames" toml:"minGames"`
	DropWorst int `json:"dropWorst" koanf:"dropWorst" toml:"dropWorst"`
}

// Configuration is a complete rating configuration.
type Configuration struct {
	TimeRange     TimeRange     `json:"timeRange" koanf:"timeRange" toml:"timeRange"`
	Rating        Rating        `json:"rating" koanf:"rating" toml:"rating"`
	Scoring       Scoring       `json:"scoring" koanf:"scoring" toml:"scoring"`
	Weights       Weights       `json:"weights" koanf:"weights" toml:"weights"`
	Qualification Qualification `json:"qualification" koanf:"qualification" toml:"qualification"`
}

// Default returns the league's season defaults with an unbounded time range.
func Default() Configuration {
	return Configuration{
		Rating: Rating{
			InitialMu:        DefaultInitialMu,
			InitialSigma:     DefaultInitialSigma,
			ConfidenceFactor: DefaultConfidenceFactor,
			DecayRate:        DefaultDecayRate,
		},
		Scoring: Scoring{
			Oka: DefaultOka,
			Uma: [4]int{10000, 5000, -5000, -10000},
		},
		Weights: Weights{
			Divisor: DefaultDivisor,
			Min:     DefaultWeightMin,
			Max:     DefaultWeightMax,
		},
		Qualification: Qualification{
			MinGames:  DefaultMinGames,
			DropWorst: DefaultDropWorst,
		},
	}
}

// Validate reports the first malformed field, wrapped in
// ErrMalformedConfiguration.
func (c Configuration) Validate() error {
	floats := []struct {
		name string
		v    float64
	}{
		{"rating.initialMu", c.Rating.InitialMu},
		{"rating.initialSigma", c.Rating.InitialSigma},
		{"rating.confidenceFactor", c.Rating.ConfidenceFactor},
		{"rating.decayRate", c.Rating.DecayRate},
		{"rating.beta", c.Rating.Beta},
		{"rating.tau", c.Rating.Tau},
		{"weights.divisor", c.Weights.Divisor},
		{"weights.min", c.Weights.Min},
		{"weights.max", c.Weights.Max},
	}
	for _, f := range floats {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return malformed("%s must be finite", f.name)
		}
	}

	switch {
	case c.Rating.InitialSigma <= 0:
		return malformed("rating.initialSigma must be > 0")
	case c.Rating.ConfidenceFactor < 0:
		return malformed("rating.confidenceFactor must be >= 0")
	case c.Rating.DecayRate < 0:
		return malformed("rating.decayRate must be >= 0")
	case c.Rating.Beta < 0:
		return malformed("rating.beta must be >= 0")
	case c.Rating.Tau < 0:
		return malformed("rating.tau must be >= 0")
	case c.Weights.Divisor <= 0:
		return malformed("weights.divisor must be > 0")
	case c.Weights.Min <= 0:
		return malformed("weights.min must be > 0")
	case c.Weights.Max < c.Weights.Min:
		return malformed("weights.max must be >= weights.min")
	case c.Qualification.MinGames < 0:
		return malformed("qualification.minGames must be >= 0")
	case c.Qualification.DropWorst < 0:
		return malformed("qualification.dropWorst must be >= 0")
	}

	start, end, err := c.TimeRange.Bounds()
	if err != nil {
		return err
	}
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		return malformed("timeRange.startDate %s is after endDate %s", c.TimeRange.StartDate, c.TimeRange.EndDate)
	}
	return nil
}

// Bounds parses the range dates. A zero time means the side is unbounded.
func (r TimeRange) Bounds() (start, end time.Time, err error) {
	if r.StartDate != "" {
		if start, err = time.Parse(DateLayout, r.StartDate); err != nil {
			return time.Time{}, time.Time{}, malformed("timeRange.startDate %q: %v", r.StartDate, err)
		}
	}
	if r.EndDate != "" {
		if end, err = time.Parse(DateLayout, r.EndDate); err != nil {
			return time.Time{}, time.Time{}, malformed("timeRange.endDate %q: %v", r.EndDate, err)
		}
	}
	return start, end, nil
}

// Contains reports whether t falls inside the range. Both ends are whole
// days and inclusive, evaluated in UTC. An unparsable range contains nothing.
func (r TimeRange) Contains(t time.Time) bool {
	start, end, err := r.Bounds()
	if err != nil {
		return false
	}
	t = t.UTC()
	if !start.IsZero() && t.Before(start) {
		return false
	}
	if !end.IsZero() && !t.Before(end.AddDate(0, 0, 1)) {
		return false
	}
	return true
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedConfiguration, fmt.Sprintf(format, args...))
}
