package rules

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/insilicare/postmarket/internal/model"
	"github.com/insilicare/postmarket/internal/timewindow"
)

// FieldsResult is the per-record outcome of the required-fields check.
// Missing fields are listed in declared order, each at most once.
type FieldsResult struct {
	Valid         bool     `json:"valid"`
	MissingFields []string `json:"missing_fields"`
}

// CheckRequiredFields verifies that every episode carries the declared field
// set. A record without an episodes array is missing "episodes" itself.
func CheckRequiredFields(p *model.Patient, fields []string) FieldsResult {
	result := FieldsResult{Valid: true, MissingFields: []string{}}

	if p.Episodes == nil {
		result.Valid = false
		result.MissingFields = []string{"episodes"}
		return result
	}

	for _, field := range fields {
		for i := range p.Episodes {
			if !p.Episodes[i].HasField(field) {
				result.Valid = false
				result.MissingFields = append(result.MissingFields, field)
				break
			}
		}
	}
	return result
}

// Period is one merged timestamp at which both IV rates are zero.
type Period struct {
	Timestamp     time.Time `json:"timestamp"`
	InsulinRate   float64   `json:"insulin_rate"`
	NutritionRate float64   `json:"nutrition_rate"`
}

// IVRateResult is the per-record outcome of the IV-rate check.
type IVRateResult struct {
	Valid          bool     `json:"valid"`
	InvalidPeriods []Period `json:"invalid_periods"`
}

// CheckIVRates merges the insulin and nutrition infusion streams on the
// union of their timestamps and flags every instant where the intravenous
// insulin rate and the nutrition rate are both zero. A stream with no event
// at a merged timestamp contributes rate 0 at that instant; rates are not
// carried forward between samples.
func CheckIVRates(p *model.Patient) IVRateResult {
	result := IVRateResult{Valid: true, InvalidPeriods: []Period{}}

	for _, episode := range p.Episodes {
		insulin := make(map[int64]float64)
		nutrition := make(map[int64]float64)
		union := make(map[int64]struct{})

		for _, e := range episode.InsulinInfusion {
			ms := e.Time.UnixMilli()
			union[ms] = struct{}{}
			// Only intravenous administrations count toward the IV rate;
			// a subcutaneous event still anchors an evaluation instant.
			if e.Intravenous() {
				insulin[ms] = e.RateOrZero()
			}
		}
		for _, e := range episode.NutritionInfusion {
			ms := e.Time.UnixMilli()
			union[ms] = struct{}{}
			nutrition[ms] = e.RateOrZero()
		}

		merged := make([]int64, 0, len(union))
		for ms := range union {
			merged = append(merged, ms)
		}
		sort.Slice(merged, func(i, j int) bool { return merged[i] < merged[j] })

		for _, ms := range merged {
			insulinRate := insulin[ms]
			nutritionRate := nutrition[ms]
			if insulinRate == 0 && nutritionRate == 0 {
				result.Valid = false
				result.InvalidPeriods = append(result.InvalidPeriods, Period{
					Timestamp:     time.UnixMilli(ms).UTC(),
					InsulinRate:   insulinRate,
					NutritionRate: nutritionRate,
				})
			}
		}
	}
	return result
}

// StatusResult is the per-record outcome of the diabetic-status check.
// Offending values are recorded verbatim as they appeared on the wire.
type StatusResult struct {
	Valid           bool              `json:"valid"`
	InvalidStatuses []json.RawMessage `json:"invalid_statuses"`
}

// CheckDiabeticStatus validates every present diabeticStatus against the
// {0, 1, 2} enumeration. Non-numeric values are always invalid; absence is
// the required-fields check's concern, not this one's.
func CheckDiabeticStatus(p *model.Patient) StatusResult {
	result := StatusResult{Valid: true, InvalidStatuses: []json.RawMessage{}}

	for _, episode := range p.Episodes {
		status := episode.DiabeticStatus
		if status == nil {
			continue
		}
		if status.Numeric && (status.Value == 0 || status.Value == 1 || status.Value == 2) {
			continue
		}
		result.Valid = false
		result.InvalidStatuses = append(result.InvalidStatuses, status.Raw)
	}
	return result
}

// WindowCount reports the density window bounds and the number of glucose
// samples inside it, emitted even when the episode passes.
type WindowCount struct {
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	Count       int       `json:"count"`
}

// DensityResult is the per-record outcome of the measurement-density check.
type DensityResult struct {
	Valid             bool          `json:"valid"`
	MeasurementCounts []WindowCount `json:"measurement_counts"`
}

// CheckMeasurementDensity counts glucose samples in the lookback window from
// the evaluation instant and requires at least minSamples per episode.
func CheckMeasurementDensity(p *model.Patient, window time.Duration, minSamples int) (DensityResult, error) {
	result := DensityResult{Valid: true, MeasurementCounts: []WindowCount{}}
	anchor := p.Anchor()

	sampleTime := func(s model.Sample) time.Time { return s.Time }

	for _, episode := range p.Episodes {
		if episode.BloodGlucose == nil {
			continue
		}
		selected, bounds, err := timewindow.Select(episode.BloodGlucose, sampleTime, anchor, window, timewindow.Before)
		if err != nil {
			return DensityResult{}, err
		}
		result.MeasurementCounts = append(result.MeasurementCounts, WindowCount{
			WindowStart: bounds.Start,
			WindowEnd:   bounds.End,
			Count:       len(selected),
		})
		if len(selected) < minSamples {
			result.Valid = false
		}
	}
	return result, nil
}
