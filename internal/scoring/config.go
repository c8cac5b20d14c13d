// Package scoring contains the pure score normalization and aggregation
// logic. Nothing in this package performs I/O or holds state: the same
// stage results always produce the same report.
package scoring

import "time"

// Weights are the fixed per-category weights for the total score.
// They must sum to 1.0; an absent category contributes weight * 0.
type Weights struct {
	Originality    float64
	Quality        float64
	Security       float64
	Effort         float64
	Implementation float64
	Engineering    float64
	Organization   float64
	Documentation  float64
}

// Sum returns the sum of all weights.
func (w Weights) Sum() float64 {
	return w.Originality + w.Quality + w.Security + w.Effort +
		w.Implementation + w.Engineering + w.Organization + w.Documentation
}

// DefaultWeights returns the documented scoring weights.
func DefaultWeights() Weights {
	return Weights{
		Originality:    0.20,
		Quality:        0.15,
		Security:       0.10,
		Effort:         0.10,
		Implementation: 0.25,
		Engineering:    0.10,
		Organization:   0.05,
		Documentation:  0.05,
	}
}

// Config holds the scoring constants. The burst and last-minute values are
// documented heuristics, not verified policy; they are configuration so
// operators can tune them without touching the aggregation semantics.
type Config struct {
	Weights Weights

	// BurstWindowFraction is the trailing fraction of the commit timeline
	// examined for burst activity.
	BurstWindowFraction float64
	// BurstCommitFraction is the share of total commits inside the trailing
	// window above which the burst warning fires.
	BurstCommitFraction float64
	// LastMinuteWindow is the trailing window, ending at the final observed
	// commit, used to count last-minute commits.
	LastMinuteWindow time.Duration
	// MaxFeedbackItems caps the strengths and improvements lists.
	MaxFeedbackItems int
}

// DefaultConfig returns the documented scoring configuration.
func DefaultConfig() Config {
	return Config{
		Weights:             DefaultWeights(),
		BurstWindowFraction: 0.20,
		BurstCommitFraction: 0.50,
		LastMinuteWindow:    30 * time.Minute,
		MaxFeedbackItems:    5,
	}
}

// Sanitize applies guardrails to scoring configuration values.
func (c *Config) Sanitize() {
	def := DefaultConfig()
	if c.Weights.Sum() <= 0 {
		c.Weights = def.Weights
	}
	if c.BurstWindowFraction <= 0 || c.BurstWindowFraction >= 1 {
		c.BurstWindowFraction = def.BurstWindowFraction
	}
	if c.BurstCommitFraction <= 0 || c.BurstCommitFraction >= 1 {
		c.BurstCommitFraction = def.BurstCommitFraction
	}
	if c.LastMinuteWindow <= 0 {
		c.LastMinuteWindow = def.LastMinuteWindow
	}
	if c.MaxFeedbackItems <= 0 {
		c.MaxFeedbackItems = def.MaxFeedbackItems
	}
}
