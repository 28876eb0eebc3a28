// Package normalize maps decoded payloads onto canonical events.
package normalize

import (
	"math"
	"time"

	"github.com/smartinhale/adherence/internal/domain/model"
)

// Normalize converts raw into an Event. It never fails: a missing or zero
// timestamp becomes now, and missing measurements become 0.
//
// Precedence: strength over force; duration over inhale_ms / 1000.
func Normalize(raw model.RawPayload, now time.Time) model.Event {
	e := model.Event{
		TS:            now.UnixMilli(),
		ShakeOK:       raw.ShakeOK,
		OrientationOK: raw.OrientationOK,
	}
	if raw.TS != nil && *raw.TS != 0 {
		e.TS = *raw.TS
	}

	switch {
	case raw.Strength != nil:
		e.Strength = measurement(*raw.Strength)
	case raw.Force != nil:
		e.Strength = measurement(*raw.Force)
	}

	switch {
	case raw.Duration != nil:
		e.Duration = measurement(*raw.Duration)
	case raw.InhaleMS != nil:
		e.Duration = measurement(*raw.InhaleMS / 1000)
	}
	return e
}

// measurement clamps values that cannot describe a physical reading to 0.
func measurement(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
