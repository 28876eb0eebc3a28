package adherence

import "time"

// Option configures an Engine.
type Option func(*Engine)

// WithExpectedDosesPerDay sets the adherence denominator. Values below 1 are ignored.
func WithExpectedDosesPerDay(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.expected = n
		}
	}
}

// WithStrengthThreshold sets the exclusive strength bound for correct technique.
// Negative values are ignored.
func WithStrengthThreshold(threshold float64) Option {
	return func(e *Engine) {
		if threshold >= 0 {
			e.threshold = threshold
		}
	}
}

// WithLocation sets the zone that defines calendar days.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}
