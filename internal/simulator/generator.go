// Package simulator produces synthetic inhalation events and replays them
// against a running service as a device bridge would.
package simulator

import (
	"crypto/rand"
	"math"
	"math/big"
	"time"

	"github.com/smartinhale/adherence/internal/domain/model"
)

// Ranges used for random events.
const (
	randomFloatDivisor = 1000000

	windowMS        = int64(time.Hour / time.Millisecond)
	durationMin     = 0.5
	durationRange   = 2.0
	flagProbability = 0.3 // a flag is false when the draw is at or below this
)

// DefaultCount is the number of events simulated when none is requested.
const DefaultCount = 5

// Generator builds random events within the hour before now.
type Generator struct {
	rnd func() float64
	now func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithRand replaces the random source. fn must return values in [0, 1).
func WithRand(fn func() float64) Option {
	return func(g *Generator) {
		if fn != nil {
			g.rnd = fn
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGenerator returns a Generator backed by crypto/rand.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{rnd: randomFloat, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Raw returns a synthetic payload: strength in [0, 1), duration in
// [0.5, 2.5) seconds, both rounded to two decimals, and each flag true with
// probability 0.7.
func (g *Generator) Raw() model.RawPayload {
	now := g.now().UnixMilli()
	ts := now - int64(g.rnd()*float64(windowMS))
	return model.RawPayload{
		Format:        model.FormatSynthetic,
		TS:            model.Int64(ts),
		Strength:      model.Float64(round2(g.rnd())),
		Duration:      model.Float64(round2(durationMin + g.rnd()*durationRange)),
		ShakeOK:       g.rnd() > flagProbability,
		OrientationOK: g.rnd() > flagProbability,
	}
}

// Raws returns n payloads. n <= 0 yields DefaultCount.
func (g *Generator) Raws(n int) []model.RawPayload {
	if n <= 0 {
		n = DefaultCount
	}
	out := make([]model.RawPayload, n)
	for i := range out {
		out[i] = g.Raw()
	}
	return out
}

// Event returns a random, already normalized event.
func (g *Generator) Event() model.Event {
	raw := g.Raw()
	return model.Event{
		TS:            *raw.TS,
		Strength:      *raw.Strength,
		Duration:      *raw.Duration,
		ShakeOK:       raw.ShakeOK,
		OrientationOK: raw.OrientationOK,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// randomFloat returns a value in [0, 1) using crypto/rand.
func randomFloat() float64 {
	n, err := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	if err != nil {
		return 0
	}
	return float64(n.Int64()) / float64(randomFloatDivisor)
}
