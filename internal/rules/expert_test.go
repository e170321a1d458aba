package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insilicare/postmarket/internal/model"
)

var anchor = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

var defaultRange = GlucoseRange{Min: 1.2, Max: 110}

func patientWith(episodes ...model.Episode) *model.Patient {
	return &model.Patient{
		HospitalID: "H-test",
		UpdateTime: &model.Instant{Time: anchor},
		Episodes:   episodes,
	}
}

func glucose(at time.Time, v float64) model.Sample {
	return model.Sample{Time: at, Value: v}
}

func insulin(at time.Time, route int, rate float64) model.Event {
	return model.Event{Time: at, Route: &route, Rate: &rate}
}

func TestCheckGlucoseRange(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		valid bool
	}{
		{"below minimum", 1.1, false},
		{"at minimum", 1.2, true},
		{"normal", 6.5, true},
		{"at maximum", 110, true},
		{"above maximum", 110.1, false},
		{"negative", -3, false},
		{"zero", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := patientWith(model.Episode{
				BloodGlucose: []model.Sample{glucose(anchor.Add(-time.Hour), tt.value)},
			})
			result := CheckGlucoseRange(p, defaultRange)
			assert.Equal(t, tt.valid, result.Valid)
			if !tt.valid {
				require.Len(t, result.InvalidValues, 1)
				assert.Equal(t, tt.value, result.InvalidValues[0].GlucoseValue)
				assert.Equal(t, anchor.Add(-time.Hour), result.InvalidValues[0].Timestamp)
			} else {
				assert.Empty(t, result.InvalidValues)
			}
		})
	}
}

func TestCheckGlucoseRange_OneViolationPerOffendingSample(t *testing.T) {
	p := patientWith(model.Episode{
		BloodGlucose: []model.Sample{
			glucose(anchor.Add(-3*time.Hour), 0.8),
			glucose(anchor.Add(-2*time.Hour), 6.5),
			glucose(anchor.Add(-1*time.Hour), 150),
		},
	})

	result := CheckGlucoseRange(p, defaultRange)
	assert.False(t, result.Valid)
	require.Len(t, result.InvalidValues, 2)
	assert.Equal(t, 0.8, result.InvalidValues[0].GlucoseValue)
	assert.Equal(t, 150.0, result.InvalidValues[1].GlucoseValue)
}

func TestCheckGlucoseRange_ScansAllEpisodes(t *testing.T) {
	p := patientWith(
		model.Episode{BloodGlucose: []model.Sample{glucose(anchor.Add(-2*time.Hour), 6.5)}},
		model.Episode{BloodGlucose: []model.Sample{glucose(anchor.Add(-1*time.Hour), 200)}},
	)

	result := CheckGlucoseRange(p, defaultRange)
	assert.False(t, result.Valid)
	require.Len(t, result.InvalidValues, 1)
}

func TestCheckSubcutaneousInsulin(t *testing.T) {
	lookback := 12 * time.Hour

	t.Run("subcutaneous infusion inside window", func(t *testing.T) {
		p := patientWith(model.Episode{
			InsulinInfusion: []model.Event{insulin(anchor.Add(-3*time.Hour), model.RouteSubcutaneous, 2)},
		})
		result, err := CheckSubcutaneousInsulin(p, lookback)
		require.NoError(t, err)
		assert.False(t, result.Valid)
		require.Len(t, result.InvalidAdministrations, 1)
		assert.Equal(t, "infusion", result.InvalidAdministrations[0].Type)
		assert.Equal(t, model.RouteSubcutaneous, result.InvalidAdministrations[0].Route)
	})

	t.Run("subcutaneous bolus inside window", func(t *testing.T) {
		p := patientWith(model.Episode{
			InsulinBolus: []model.Event{insulin(anchor.Add(-11*time.Hour), model.RouteSubcutaneous, 4)},
		})
		result, err := CheckSubcutaneousInsulin(p, lookback)
		require.NoError(t, err)
		assert.False(t, result.Valid)
		require.Len(t, result.InvalidAdministrations, 1)
		assert.Equal(t, "bolus", result.InvalidAdministrations[0].Type)
	})

	t.Run("intravenous route passes", func(t *testing.T) {
		p := patientWith(model.Episode{
			InsulinInfusion: []model.Event{insulin(anchor.Add(-3*time.Hour), model.RouteIntravenous, 2)},
			InsulinBolus:    []model.Event{insulin(anchor.Add(-2*time.Hour), model.RouteIntravenous, 4)},
		})
		result, err := CheckSubcutaneousInsulin(p, lookback)
		require.NoError(t, err)
		assert.True(t, result.Valid)
		assert.Empty(t, result.InvalidAdministrations)
	})

	t.Run("subcutaneous outside window passes", func(t *testing.T) {
		p := patientWith(model.Episode{
			InsulinBolus: []model.Event{insulin(anchor.Add(-13*time.Hour), model.RouteSubcutaneous, 4)},
		})
		result, err := CheckSubcutaneousInsulin(p, lookback)
		require.NoError(t, err)
		assert.True(t, result.Valid)
	})

	t.Run("window start is closed, anchor is open", func(t *testing.T) {
		p := patientWith(model.Episode{
			InsulinBolus: []model.Event{
				insulin(anchor.Add(-12*time.Hour), model.RouteSubcutaneous, 4), // exactly anchor-12h: violation
				insulin(anchor, model.RouteSubcutaneous, 4),                    // exactly anchor: excluded
			},
		})
		result, err := CheckSubcutaneousInsulin(p, lookback)
		require.NoError(t, err)
		assert.False(t, result.Valid)
		require.Len(t, result.InvalidAdministrations, 1)
		assert.Equal(t, anchor.Add(-12*time.Hour), result.InvalidAdministrations[0].Timestamp)
	})

	t.Run("one violation per event", func(t *testing.T) {
		p := patientWith(model.Episode{
			InsulinInfusion: []model.Event{
				insulin(anchor.Add(-4*time.Hour), model.RouteSubcutaneous, 2),
				insulin(anchor.Add(-2*time.Hour), model.RouteSubcutaneous, 2),
			},
			InsulinBolus: []model.Event{insulin(anchor.Add(-1*time.Hour), model.RouteSubcutaneous, 4)},
		})
		result, err := CheckSubcutaneousInsulin(p, lookback)
		require.NoError(t, err)
		assert.Len(t, result.InvalidAdministrations, 3)
	})

	t.Run("routeless events pass", func(t *testing.T) {
		p := patientWith(model.Episode{
			InsulinInfusion: []model.Event{{Time: anchor.Add(-time.Hour)}},
		})
		result, err := CheckSubcutaneousInsulin(p, lookback)
		require.NoError(t, err)
		assert.True(t, result.Valid)
	})
}
