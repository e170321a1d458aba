package evaluation

import (
	"github.com/rs/zerolog/log"

	"github.com/insilicare/postmarket/internal/config"
	"github.com/insilicare/postmarket/internal/loader"
	"github.com/insilicare/postmarket/internal/report"
	"github.com/insilicare/postmarket/internal/rules"
)

const (
	requiredFieldsInfo = "Required fields exist (diabeticStatus, startTime, bloodGlucose, insulinInfusion, insulinBolus, nutritionInfusion, nutritionBolus)"
	ivRatesInfo        = "Both IV insulin and nutrition rates cannot be null at the same time"
	statusInfo         = "diabeticStatus has a valid value (0,1,2)"
	densityInfo        = "At least 3 blood glucose measurements in the last 6 hours"
)

// Statistical runs the four consistency checks over every loaded record and
// assembles the check_1..check_4 report.
func Statistical(cfg *config.Config, records []loader.Record) (*report.Report, error) {
	rep := report.New(
		report.Decl{Name: "check_1", Information: requiredFieldsInfo},
		report.Decl{Name: "check_2", Information: ivRatesInfo},
		report.Decl{Name: "check_3", Information: statusInfo},
		report.Decl{Name: "check_4", Information: densityInfo},
	)

	for _, rec := range records {
		if err := rep.Add("check_1", rec.Name, rules.CheckRequiredFields(rec.Patient, cfg.Clinical.RequiredFields)); err != nil {
			return nil, err
		}
		if err := rep.Add("check_2", rec.Name, rules.CheckIVRates(rec.Patient)); err != nil {
			return nil, err
		}
		if err := rep.Add("check_3", rec.Name, rules.CheckDiabeticStatus(rec.Patient)); err != nil {
			return nil, err
		}

		density, err := rules.CheckMeasurementDensity(rec.Patient, cfg.Clinical.DensityWindow(), cfg.Clinical.MinGlucoseSamples)
		if err != nil {
			return nil, err
		}
		if err := rep.Add("check_4", rec.Name, density); err != nil {
			return nil, err
		}
	}

	log.Info().Int("records", len(records)).Msg("statistical analysis completed")
	return rep, nil
}
