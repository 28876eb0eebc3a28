// Package model contains domain models passed between layers.
package model

import "time"

// Classification labels for an event's technique.
const (
	LabelCorrect  = "Correct"
	LabelImproper = "Improper"
)

// DefaultStrengthThreshold is the exclusive lower bound on strength for a
// correct inhalation.
const DefaultStrengthThreshold = 0.5

// Event is one canonical inhalation as stored and reported.
type Event struct {
	TS            int64   `json:"ts"`            // ms since Unix epoch
	Strength      float64 `json:"strength"`      // unitless, >= 0
	Duration      float64 `json:"duration"`      // seconds, >= 0
	ShakeOK       bool    `json:"shakeOk"`       // device was shaken beforehand
	OrientationOK bool    `json:"orientationOk"` // device was held upright
}

// Time returns TS as a time.Time in loc.
func (e Event) Time(loc *time.Location) time.Time {
	return time.UnixMilli(e.TS).In(loc)
}

// IsCorrectTechnique reports whether the device was shaken, held correctly,
// and the inhalation was stronger than threshold.
func (e Event) IsCorrectTechnique(threshold float64) bool {
	return e.ShakeOK && e.OrientationOK && e.Strength > threshold
}

// Label returns LabelCorrect or LabelImproper.
func (e Event) Label(threshold float64) string {
	if e.IsCorrectTechnique(threshold) {
		return LabelCorrect
	}
	return LabelImproper
}
