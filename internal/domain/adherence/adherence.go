// Package adherence derives dose and technique metrics from an event snapshot.
// All functions are pure: they read a newest-first slice and the caller's
// notion of now, and never retain either.
package adherence

import (
	"math"
	"sort"
	"time"

	"github.com/smartinhale/adherence/internal/domain/model"
)

// DefaultExpectedDosesPerDay is the dose target used when none is configured.
const DefaultExpectedDosesPerDay = 2

const dateLayout = "2006-01-02"

// Engine computes metrics with a fixed dose target, threshold and zone.
type Engine struct {
	expected  int
	threshold float64
	loc       *time.Location
}

// New creates an Engine. Defaults: 2 doses per day, threshold 0.5, local time.
func New(opts ...Option) *Engine {
	e := &Engine{
		expected:  DefaultExpectedDosesPerDay,
		threshold: model.DefaultStrengthThreshold,
		loc:       time.Local,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExpectedDosesPerDay returns the configured dose target.
func (e *Engine) ExpectedDosesPerDay() int { return e.expected }

// StrengthThreshold returns the configured strength threshold.
func (e *Engine) StrengthThreshold() float64 { return e.threshold }

// Location returns the zone that defines calendar days.
func (e *Engine) Location() *time.Location { return e.loc }

// DayBounds returns [start, end) of the calendar day containing now.
func (e *Engine) DayBounds(now time.Time) (time.Time, time.Time) {
	local := now.In(e.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, e.loc)
	return start, start.AddDate(0, 0, 1)
}

// TodaysCount counts events whose timestamp falls on now's calendar day.
func (e *Engine) TodaysCount(events []model.Event, now time.Time) int {
	start, end := e.DayBounds(now)
	lo, hi := start.UnixMilli(), end.UnixMilli()
	n := 0
	for _, ev := range events {
		if ev.TS >= lo && ev.TS < hi {
			n++
		}
	}
	return n
}

// AdherencePercent is today's count over the dose target, as a whole
// percentage rounded half up and capped at 100.
func (e *Engine) AdherencePercent(events []model.Event, now time.Time) int {
	return e.percent(e.TodaysCount(events, now))
}

func (e *Engine) percent(count int) int {
	p := int(math.Floor(float64(count)/float64(e.expected)*100 + 0.5))
	return min(p, 100)
}

// DailyAggregate groups events by calendar day, ascending by date. Days
// without events are omitted.
func (e *Engine) DailyAggregate(events []model.Event) []model.DailyAggregate {
	byDay := make(map[string]*model.DailyAggregate)
	for _, ev := range events {
		date := ev.Time(e.loc).Format(dateLayout)
		agg, ok := byDay[date]
		if !ok {
			agg = &model.DailyAggregate{Date: date}
			byDay[date] = agg
		}
		if ev.IsCorrectTechnique(e.threshold) {
			agg.Correct++
		} else {
			agg.Wrong++
		}
	}

	out := make([]model.DailyAggregate, 0, len(byDay))
	for _, agg := range byDay {
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// TechniqueIssues tallies each kind of mistake independently.
func (e *Engine) TechniqueIssues(events []model.Event) model.TechniqueIssues {
	var t model.TechniqueIssues
	for _, ev := range events {
		if !ev.ShakeOK {
			t.NotShaken++
		}
		if ev.Strength <= e.threshold {
			t.WeakInhale++
		}
		if !ev.OrientationOK {
			t.OrientationIssues++
		}
	}
	return t
}

// ClassifiedEvent is an event with its technique verdict.
type ClassifiedEvent struct {
	model.Event
	Correct bool   `json:"correct"`
	Label   string `json:"label"`
}

// Classify labels events in the given order.
func (e *Engine) Classify(events []model.Event) []ClassifiedEvent {
	out := make([]ClassifiedEvent, len(events))
	for i, ev := range events {
		ok := ev.IsCorrectTechnique(e.threshold)
		out[i] = ClassifiedEvent{Event: ev, Correct: ok, Label: ev.Label(e.threshold)}
	}
	return out
}

// Summary is everything a dashboard renders, computed from one snapshot.
type Summary struct {
	GeneratedAt   time.Time              `json:"generatedAt"`
	TotalEvents   int                    `json:"totalEvents"`
	TodaysCount   int                    `json:"todaysCount"`
	ExpectedDoses int                    `json:"expectedDoses"`
	Adherence     int                    `json:"adherence"`
	LastEvent     *ClassifiedEvent       `json:"lastEvent"`
	Recent        []ClassifiedEvent      `json:"recent"`
	Technique     model.TechniqueIssues  `json:"technique"`
	Daily         []model.DailyAggregate `json:"daily"`
}

// Summarize computes a Summary. recent caps the number of newest events
// returned; values below 0 are treated as 0.
func (e *Engine) Summarize(events []model.Event, now time.Time, recent int) Summary {
	recent = max(0, min(recent, len(events)))
	today := e.TodaysCount(events, now)
	s := Summary{
		GeneratedAt:   now,
		TotalEvents:   len(events),
		TodaysCount:   today,
		ExpectedDoses: e.expected,
		Adherence:     e.percent(today),
		Recent:        e.Classify(events[:recent]),
		Technique:     e.TechniqueIssues(events),
		Daily:         e.DailyAggregate(events),
	}
	if len(events) > 0 {
		last := e.Classify(events[:1])[0]
		s.LastEvent = &last
	}
	return s
}
