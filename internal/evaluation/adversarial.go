package evaluation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/insilicare/postmarket/internal/loader"
	"github.com/insilicare/postmarket/internal/metrics"
	"github.com/insilicare/postmarket/internal/model"
	"github.com/insilicare/postmarket/internal/predictor"
	"github.com/insilicare/postmarket/internal/report"
	"github.com/insilicare/postmarket/internal/telemetry"
	"github.com/insilicare/postmarket/internal/timewindow"
)

const adversarialInfo = "Adversarial evaluation comparing STAR model performance on real-world data (RWD) " +
	"versus synthetic data. The evaluation assesses whether the model trained on real data " +
	"generalizes similarly to synthetic data, indicating synthetic data quality and realism.\n\n" +
	"Metrics:\n" +
	"- Coverage Rate: Percentage of ground truth values falling within predicted intervals " +
	"(BG5TH to BG95TH). Higher values indicate better calibrated predictions.\n" +
	"- MAE (Mean Absolute Error): Average absolute difference between predicted interval midpoints " +
	"and ground truth values. Lower is better.\n" +
	"- RMSE (Root Mean Squared Error): Square root of average squared errors, penalizing larger errors " +
	"more heavily. Lower is better.\n" +
	"- MAPE (Mean Absolute Percentage Error): Average absolute percentage error, useful for " +
	"comparing performance across different scales. Lower is better.\n\n" +
	"Interpretation:\n" +
	"Small differences between RWD and synthetic metrics suggest the synthetic data captures real-world " +
	"patterns well and can be used as a valid substitute for model evaluation. Large differences " +
	"indicate distribution mismatch and potential limitations in synthetic data utility."

// Adversarial fans prediction calls out over a bounded worker pool and
// aggregates comparability metrics per dataset.
type Adversarial struct {
	Client    *predictor.Client
	Workers   int
	Horizon   time.Duration
	Telemetry *telemetry.Metrics
}

// DatasetResult is the aggregate over one dataset. Records whose API calls
// exhausted their retries are flagged, not silently dropped.
type DatasetResult struct {
	Summary     metrics.Summary
	Records     int
	FailedCalls int
	Failures    []loader.Failure
}

type recordOutcome struct {
	name        string
	samples     []metrics.Sample
	failedCalls int
	err         error
}

// Compare evaluates the real-world and synthetic datasets independently and
// assembles the metric comparison report.
func (a *Adversarial) Compare(ctx context.Context, rwd, synthetic []loader.Record) (report.Adversarial, DatasetResult, DatasetResult, error) {
	rwdResult, err := a.EvaluateDataset(ctx, "rwd", rwd)
	if err != nil {
		return report.Adversarial{}, DatasetResult{}, DatasetResult{}, err
	}
	synthResult, err := a.EvaluateDataset(ctx, "synthetic", synthetic)
	if err != nil {
		return report.Adversarial{}, DatasetResult{}, DatasetResult{}, err
	}

	rep := report.NewAdversarial(adversarialInfo, rwdResult.Summary, synthResult.Summary)
	return rep, rwdResult, synthResult, nil
}

// EvaluateDataset processes records concurrently with the configured worker
// bound. The sample accumulator is the single synchronization point; no
// other state is shared across records.
func (a *Adversarial) EvaluateDataset(ctx context.Context, dataset string, records []loader.Record) (DatasetResult, error) {
	if a.Workers <= 0 {
		return DatasetResult{}, fmt.Errorf("worker count must be positive, got %d", a.Workers)
	}

	jobs := make(chan loader.Record)
	outcomes := make(chan recordOutcome, len(records))

	var wg sync.WaitGroup
	for i := 0; i < a.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				outcomes <- a.evaluateRecord(ctx, rec)
			}
		}()
	}

feed:
	for _, rec := range records {
		select {
		case jobs <- rec:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	close(outcomes)

	result := DatasetResult{Records: len(records)}
	var samples []metrics.Sample
	for out := range outcomes {
		samples = append(samples, out.samples...)
		result.FailedCalls += out.failedCalls
		if out.err != nil {
			result.Failures = append(result.Failures, loader.Failure{Name: out.name, Reason: out.err.Error()})
		} else if out.failedCalls > 0 {
			result.Failures = append(result.Failures, loader.Failure{
				Name:   out.name,
				Reason: fmt.Sprintf("partial evaluation: %d prediction calls failed", out.failedCalls),
			})
		}
	}
	sort.Slice(result.Failures, func(i, j int) bool { return result.Failures[i].Name < result.Failures[j].Name })

	if err := ctx.Err(); err != nil {
		return DatasetResult{}, err
	}

	result.Summary = metrics.Compute(samples)
	log.Info().
		Str("dataset", dataset).
		Int("records", result.Records).
		Int("samples", result.Summary.Samples).
		Int("failed_calls", result.FailedCalls).
		Msg("adversarial dataset evaluated")
	return result, nil
}

// evaluateRecord calls the prediction API once per evaluable future glucose
// sample. Failed calls are counted and their samples omitted; the remaining
// samples still contribute to the dataset aggregate.
func (a *Adversarial) evaluateRecord(ctx context.Context, rec loader.Record) recordOutcome {
	out := recordOutcome{name: rec.Name}

	if a.Telemetry != nil {
		a.Telemetry.InFlight.Inc()
		defer a.Telemetry.InFlight.Dec()
	}

	points, err := a.predictionPoints(rec.Patient)
	if err != nil {
		out.err = err
		a.countRecord("failed")
		return out
	}
	if len(points) == 0 {
		out.err = fmt.Errorf("no evaluable glucose samples after updateTime")
		a.countRecord("failed")
		return out
	}

	for _, pt := range points {
		start := time.Now()
		interval, err := a.Client.Predict(ctx, rec.Patient, pt.Time)
		if a.Telemetry != nil {
			a.Telemetry.PredictionSeconds.Observe(time.Since(start).Seconds())
		}
		if err != nil {
			if ctx.Err() != nil {
				out.err = ctx.Err()
				return out
			}
			out.failedCalls++
			a.countCall("error")
			log.Warn().Str("file", rec.Name).Time("at", pt.Time).Err(err).Msg("prediction call failed")
			continue
		}
		a.countCall("ok")
		out.samples = append(out.samples, metrics.Sample{
			Low:   interval.Low,
			High:  interval.High,
			Truth: pt.Value,
		})
	}

	if out.failedCalls > 0 {
		a.countRecord("partial")
	} else {
		a.countRecord("ok")
	}
	return out
}

// predictionPoints selects the ground-truth glucose samples strictly after
// the anchor, capped by the prediction horizon the API accepts.
func (a *Adversarial) predictionPoints(p *model.Patient) ([]model.Sample, error) {
	anchor := p.Anchor()
	sampleTime := func(s model.Sample) time.Time { return s.Time }

	var points []model.Sample
	for _, episode := range p.Episodes {
		selected, _, err := timewindow.Select(episode.BloodGlucose, sampleTime, anchor, a.Horizon, timewindow.After)
		if err != nil {
			return nil, err
		}
		for _, s := range selected {
			if s.Time.After(anchor) {
				points = append(points, s)
			}
		}
	}
	return points, nil
}

func (a *Adversarial) countCall(result string) {
	if a.Telemetry != nil {
		a.Telemetry.PredictionCalls.WithLabelValues(result).Inc()
	}
}

func (a *Adversarial) countRecord(status string) {
	if a.Telemetry != nil {
		a.Telemetry.RecordsEvaluated.WithLabelValues("adversarial", status).Inc()
	}
}
