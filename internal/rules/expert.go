package rules

import (
	"time"

	"github.com/insilicare/postmarket/internal/model"
	"github.com/insilicare/postmarket/internal/timewindow"
)

// GlucoseRange is the humanly plausible blood glucose interval in mmol/L.
type GlucoseRange struct {
	Min float64
	Max float64
}

// OutOfRangeValue is one glucose sample outside the plausible range.
type OutOfRangeValue struct {
	Timestamp    time.Time `json:"timestamp"`
	GlucoseValue float64   `json:"glucose_value"`
}

// RangeResult is the per-record outcome of the glucose range criterion.
type RangeResult struct {
	Valid         bool              `json:"valid"`
	InvalidValues []OutOfRangeValue `json:"invalid_values"`
}

// CheckGlucoseRange scans every glucose sample in every episode and collects
// one violation per out-of-range value. The record is valid iff none exist.
func CheckGlucoseRange(p *model.Patient, r GlucoseRange) RangeResult {
	result := RangeResult{Valid: true, InvalidValues: []OutOfRangeValue{}}

	for _, episode := range p.Episodes {
		for _, s := range episode.BloodGlucose {
			if s.Value < r.Min || s.Value > r.Max {
				result.Valid = false
				result.InvalidValues = append(result.InvalidValues, OutOfRangeValue{
					Timestamp:    s.Time,
					GlucoseValue: s.Value,
				})
			}
		}
	}
	return result
}

// Administration is one offending insulin administration.
type Administration struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Route     int       `json:"route"`
}

// InsulinResult is the per-record outcome of the subcutaneous insulin
// exclusion criterion.
type InsulinResult struct {
	Valid                  bool             `json:"valid"`
	InvalidAdministrations []Administration `json:"invalid_administrations"`
}

// CheckSubcutaneousInsulin looks back from the evaluation instant and flags
// every subcutaneous insulin administration inside the window. Insulin action
// persists well past administration, so the lookback is the evaluation window
// plus the insulin action duration.
func CheckSubcutaneousInsulin(p *model.Patient, lookback time.Duration) (InsulinResult, error) {
	result := InsulinResult{Valid: true, InvalidAdministrations: []Administration{}}
	anchor := p.Anchor()

	eventTime := func(e model.Event) time.Time { return e.Time }

	for _, episode := range p.Episodes {
		streams := []struct {
			kind   string
			events []model.Event
		}{
			{"infusion", episode.InsulinInfusion},
			{"bolus", episode.InsulinBolus},
		}

		for _, stream := range streams {
			windowed, _, err := timewindow.Select(stream.events, eventTime, anchor, lookback, timewindow.Before)
			if err != nil {
				return InsulinResult{}, err
			}
			for _, e := range windowed {
				if !e.Subcutaneous() {
					continue
				}
				result.Valid = false
				result.InvalidAdministrations = append(result.InvalidAdministrations, Administration{
					Timestamp: e.Time,
					Type:      stream.kind,
					Route:     *e.Route,
				})
			}
		}
	}
	return result, nil
}
