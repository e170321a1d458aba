package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformed marks patient records that cannot be decoded. Files failing
// with it are excluded from the batch and flagged, never fatal to the run.
var ErrMalformed = errors.New("malformed patient record")

// Administration routes for insulin.
const (
	RouteIntravenous  = 0
	RouteSubcutaneous = 1
)

// Patient is one record as produced by the synthetic generator or the RWD
// export. The raw payload is retained because the prediction API consumes
// the record verbatim.
type Patient struct {
	HospitalID string    `json:"hospitalID"`
	UpdateTime *Instant  `json:"updateTime"`
	Episodes   []Episode `json:"episodes"`

	raw json.RawMessage
}

// Episode is one clinical encounter carrying its own time-series streams.
// Slices are nil when the field is absent from the record, which is distinct
// from a present-but-empty stream.
type Episode struct {
	DiabeticStatus    *Status  `json:"diabeticStatus"`
	StartTime         *Instant `json:"startTime"`
	BloodGlucose      []Sample `json:"bloodGlucose"`
	InsulinInfusion   []Event  `json:"insulinInfusion"`
	InsulinBolus      []Event  `json:"insulinBolus"`
	NutritionInfusion []Event  `json:"nutritionInfusion"`
	NutritionBolus    []Event  `json:"nutritionBolus"`
}

// Sample is one glucose measurement, serialized on the wire as a
// [timestamp_ms, value] pair.
type Sample struct {
	Time  time.Time
	Value float64
}

// Event is one administration record, serialized as [timestamp_ms, object].
// A rate of exactly 0 means "no active administration at that instant", not
// a missing record. Optional fields stay nil when absent.
type Event struct {
	Time          time.Time
	Route         *int
	Rate          *float64
	Concentration *float64
}

// Status is the diabeticStatus field. It keeps the verbatim JSON so
// non-numeric values can be reported exactly as they appeared.
type Status struct {
	Numeric bool
	Value   float64
	Raw     json.RawMessage
}

// Instant is an epoch-millisecond timestamp on the wire.
type Instant struct {
	time.Time
}

// Decode parses a patient record and validates that the anchor instant is
// present. The original payload is retained for the prediction API.
func Decode(b []byte) (*Patient, error) {
	var p Patient
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if p.UpdateTime == nil {
		return nil, fmt.Errorf("%w: missing updateTime anchor", ErrMalformed)
	}
	p.raw = append(json.RawMessage(nil), b...)
	return &p, nil
}

// Raw returns the original JSON payload the record was decoded from.
func (p *Patient) Raw() json.RawMessage {
	return p.raw
}

// Anchor returns the evaluation instant all lookback windows are measured
// from. Decode guarantees it is set.
func (p *Patient) Anchor() time.Time {
	return p.UpdateTime.Time
}

// HasField reports whether a declared episode field is present. Unknown
// names are absent by definition.
func (e *Episode) HasField(name string) bool {
	switch name {
	case "diabeticStatus":
		return e.DiabeticStatus != nil
	case "startTime":
		return e.StartTime != nil
	case "bloodGlucose":
		return e.BloodGlucose != nil
	case "insulinInfusion":
		return e.InsulinInfusion != nil
	case "insulinBolus":
		return e.InsulinBolus != nil
	case "nutritionInfusion":
		return e.NutritionInfusion != nil
	case "nutritionBolus":
		return e.NutritionBolus != nil
	}
	return false
}

// Subcutaneous reports whether the event was administered via the
// subcutaneous route. Events without a route are not subcutaneous.
func (e Event) Subcutaneous() bool {
	return e.Route != nil && *e.Route == RouteSubcutaneous
}

// Intravenous reports whether the event counts toward the IV rate. Infusion
// records without an explicit route are treated as intravenous.
func (e Event) Intravenous() bool {
	return e.Route == nil || *e.Route == RouteIntravenous
}

// RateOrZero returns the administration rate, treating an absent rate as 0.
func (e Event) RateOrZero() float64 {
	if e.Rate == nil {
		return 0
	}
	return *e.Rate
}

func (i *Instant) UnmarshalJSON(b []byte) error {
	var ms json.Number
	if err := json.Unmarshal(b, &ms); err != nil {
		return fmt.Errorf("%w: timestamp %s is not numeric", ErrMalformed, b)
	}
	f, err := ms.Float64()
	if err != nil {
		return fmt.Errorf("%w: timestamp %s is not numeric", ErrMalformed, ms)
	}
	i.Time = time.UnixMilli(int64(f)).UTC()
	return nil
}

func (i Instant) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.UnixMilli())
}

func (s *Sample) UnmarshalJSON(b []byte) error {
	var pair []json.Number
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("%w: glucose entry is not a [timestamp, value] pair: %v", ErrMalformed, err)
	}
	if len(pair) < 2 {
		return fmt.Errorf("%w: glucose entry has %d elements, need 2", ErrMalformed, len(pair))
	}
	ms, err := pair[0].Float64()
	if err != nil {
		return fmt.Errorf("%w: glucose timestamp %s is not numeric", ErrMalformed, pair[0])
	}
	v, err := pair[1].Float64()
	if err != nil {
		return fmt.Errorf("%w: glucose value %s is not numeric", ErrMalformed, pair[1])
	}
	s.Time = time.UnixMilli(int64(ms)).UTC()
	s.Value = v
	return nil
}

func (s Sample) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{s.Time.UnixMilli(), s.Value})
}

func (e *Event) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("%w: administration entry is not a [timestamp, object] pair: %v", ErrMalformed, err)
	}
	if len(pair) < 2 {
		return fmt.Errorf("%w: administration entry has %d elements, need 2", ErrMalformed, len(pair))
	}

	var ms json.Number
	if err := json.Unmarshal(pair[0], &ms); err != nil {
		return fmt.Errorf("%w: administration timestamp %s is not numeric", ErrMalformed, pair[0])
	}
	f, err := ms.Float64()
	if err != nil {
		return fmt.Errorf("%w: administration timestamp %s is not numeric", ErrMalformed, ms)
	}
	e.Time = time.UnixMilli(int64(f)).UTC()

	var body struct {
		Route         *int     `json:"route"`
		Rate          *float64 `json:"rate"`
		Concentration *float64 `json:"concentration"`
	}
	if err := json.Unmarshal(pair[1], &body); err != nil {
		return fmt.Errorf("%w: administration payload: %v", ErrMalformed, err)
	}
	e.Route = body.Route
	e.Rate = body.Rate
	e.Concentration = body.Concentration
	return nil
}

func (s *Status) UnmarshalJSON(b []byte) error {
	s.Raw = append(json.RawMessage(nil), b...)
	var v float64
	if err := json.Unmarshal(b, &v); err == nil {
		s.Numeric = true
		s.Value = v
	}
	return nil
}

func (s Status) MarshalJSON() ([]byte, error) {
	return s.Raw, nil
}
