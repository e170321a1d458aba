package metrics

import "math"

// Sample pairs one prediction interval with its ground-truth glucose value.
type Sample struct {
	Low   float64
	High  float64
	Truth float64
}

// Midpoint is the point estimate derived from the interval.
func (s Sample) Midpoint() float64 {
	return (s.Low + s.High) / 2
}

// Covered reports whether the ground truth falls inside the interval.
func (s Sample) Covered() bool {
	return s.Low <= s.Truth && s.Truth <= s.High
}

// Summary aggregates the comparability metrics over one dataset. Coverage
// and MAPE are percentages.
type Summary struct {
	Coverage float64 `json:"coverage_rate"`
	MAE      float64 `json:"mae"`
	RMSE     float64 `json:"rmse"`
	MAPE     float64 `json:"mape"`

	// Samples is the population size; MAPEExcluded counts samples left out
	// of the MAPE mean because their ground truth is zero.
	Samples      int `json:"samples"`
	MAPEExcluded int `json:"mape_excluded"`
}

// Compute aggregates the full sample population. The result is independent
// of sample order. An empty population yields a zero summary.
func Compute(samples []Sample) Summary {
	s := Summary{Samples: len(samples)}
	if len(samples) == 0 {
		return s
	}

	covered := 0
	var absSum, sqSum, pctSum float64
	pctN := 0

	for _, sample := range samples {
		if sample.Covered() {
			covered++
		}
		err := sample.Midpoint() - sample.Truth
		absSum += math.Abs(err)
		sqSum += err * err
		if sample.Truth != 0 {
			pctSum += math.Abs(err) / math.Abs(sample.Truth)
			pctN++
		}
	}

	n := float64(len(samples))
	s.Coverage = float64(covered) / n * 100
	s.MAE = absSum / n
	s.RMSE = math.Sqrt(sqSum / n)
	s.MAPEExcluded = len(samples) - pctN
	if pctN > 0 {
		s.MAPE = pctSum / float64(pctN) * 100
	}
	return s
}
