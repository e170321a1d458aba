package evaluation

import (
	"github.com/rs/zerolog/log"

	"github.com/insilicare/postmarket/internal/config"
	"github.com/insilicare/postmarket/internal/loader"
	"github.com/insilicare/postmarket/internal/report"
	"github.com/insilicare/postmarket/internal/rules"
)

const (
	glucoseRangeInfo = "The valid humanly plausible ranges for blood glucose are [1.2, 110] mmol/L according to Barry (2020) and Manappallil (2017)"

	subcutaneousInfo = "According to Walsh et. al. (2014), subcutaneous insulin may not have been administered in the last 6 hours prior the period considered (so 12hours before the time of evaluation)"
)

// Expert runs the expert-knowledge criteria over every loaded record and
// assembles the criterion_1/criterion_2 report.
func Expert(cfg *config.Config, records []loader.Record) (*report.Report, error) {
	rep := report.New(
		report.Decl{Name: "criterion_1", Information: glucoseRangeInfo},
		report.Decl{Name: "criterion_2", Information: subcutaneousInfo},
	)

	limits := rules.GlucoseRange{
		Min: cfg.Clinical.GlucoseMinMmol,
		Max: cfg.Clinical.GlucoseMaxMmol,
	}

	for _, rec := range records {
		rangeResult := rules.CheckGlucoseRange(rec.Patient, limits)
		if err := rep.Add("criterion_1", rec.Name, rangeResult); err != nil {
			return nil, err
		}

		insulinResult, err := rules.CheckSubcutaneousInsulin(rec.Patient, cfg.Clinical.InsulinLookback())
		if err != nil {
			return nil, err
		}
		if err := rep.Add("criterion_2", rec.Name, insulinResult); err != nil {
			return nil, err
		}

		if !rangeResult.Valid || !insulinResult.Valid {
			log.Debug().
				Str("file", rec.Name).
				Bool("range_valid", rangeResult.Valid).
				Bool("insulin_valid", insulinResult.Valid).
				Msg("expert criteria violated")
		}
	}

	log.Info().Int("records", len(records)).Msg("expert knowledge evaluation completed")
	return rep, nil
}
