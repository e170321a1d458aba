package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/insilicare/postmarket/internal/config"
	"github.com/insilicare/postmarket/internal/evaluation"
	"github.com/insilicare/postmarket/internal/loader"
	"github.com/insilicare/postmarket/internal/predictor"
	"github.com/insilicare/postmarket/internal/report"
	"github.com/insilicare/postmarket/internal/telemetry"
)

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

func runExpert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dir, _ := cmd.Flags().GetString("synthetic")
	out, _ := cmd.Flags().GetString("out")

	records, failures, err := loader.LoadDir(dir)
	if err != nil {
		return err
	}
	warnExclusions("expert", failures)

	rep, err := evaluation.Expert(cfg, records)
	if err != nil {
		return err
	}
	if err := writeJSON(out, rep); err != nil {
		return err
	}

	fmt.Printf("Expert knowledge evaluation completed: %d records, results in %s\n", len(records), out)
	return nil
}

func runStatistical(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dir, _ := cmd.Flags().GetString("synthetic")
	out, _ := cmd.Flags().GetString("out")

	records, failures, err := loader.LoadDir(dir)
	if err != nil {
		return err
	}
	warnExclusions("statistical", failures)

	rep, err := evaluation.Statistical(cfg, records)
	if err != nil {
		return err
	}
	if err := writeJSON(out, rep); err != nil {
		return err
	}

	fmt.Printf("Statistical analysis completed: %d records, results in %s\n", len(records), out)
	return nil
}

func runAdversarial(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	synthDir, _ := cmd.Flags().GetString("synthetic")
	rwdDir, _ := cmd.Flags().GetString("rwd")
	out, _ := cmd.Flags().GetString("out")

	ctx, cancel := signalContext()
	defer cancel()

	eval, tel := buildAdversarial(cmd, cfg)
	stopMonitor := maybeStartMonitor(cmd, tel)
	defer stopMonitor()

	synthetic, synthFailures, err := loader.LoadDir(synthDir)
	if err != nil {
		return err
	}
	rwd, rwdFailures, err := loader.LoadDir(rwdDir)
	if err != nil {
		return err
	}
	warnExclusions("adversarial/synthetic", synthFailures)
	warnExclusions("adversarial/rwd", rwdFailures)

	rep, rwdResult, synthResult, err := eval.Compare(ctx, rwd, synthetic)
	if err != nil {
		return err
	}
	if err := writeJSON(out, rep); err != nil {
		return err
	}

	fmt.Printf("Adversarial evaluation completed. Results saved to %s\n", out)
	fmt.Printf("  rwd: %d records, %d samples (%d failed calls)\n",
		rwdResult.Records, rwdResult.Summary.Samples, rwdResult.FailedCalls)
	fmt.Printf("  synthetic: %d records, %d samples (%d failed calls)\n",
		synthResult.Records, synthResult.Summary.Samples, synthResult.FailedCalls)
	return nil
}

func runAll(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	synthDir, _ := cmd.Flags().GetString("synthetic")
	rwdDir, _ := cmd.Flags().GetString("rwd")
	outDir, _ := cmd.Flags().GetString("out-dir")

	ctx, cancel := signalContext()
	defer cancel()

	eval, tel := buildAdversarial(cmd, cfg)
	stopMonitor := maybeStartMonitor(cmd, tel)
	defer stopMonitor()

	synthetic, synthFailures, err := loader.LoadDir(synthDir)
	if err != nil {
		return err
	}
	rwd, rwdFailures, err := loader.LoadDir(rwdDir)
	if err != nil {
		return err
	}

	expertRep, err := evaluation.Expert(cfg, synthetic)
	if err != nil {
		return err
	}
	statRep, err := evaluation.Statistical(cfg, synthetic)
	if err != nil {
		return err
	}
	advRep, rwdResult, synthResult, err := eval.Compare(ctx, rwd, synthetic)
	if err != nil {
		return err
	}

	expertJSON, err := json.Marshal(expertRep)
	if err != nil {
		return err
	}
	statJSON, err := json.Marshal(statRep)
	if err != nil {
		return err
	}
	advJSON, err := json.Marshal(advRep)
	if err != nil {
		return err
	}

	combined := report.Combined{
		RunID:               uuid.NewString(),
		GeneratedAt:         time.Now().UTC(),
		ExpertKnowledge:     expertJSON,
		StatisticalAnalysis: statJSON,
		Adversarial:         advJSON,
		Exclusions:          collectExclusions(synthFailures, rwdFailures, rwdResult, synthResult),
	}

	outputs := map[string]interface{}{
		"expert_knowledge_results.json":       expertRep,
		"statistical_analysis_results.json":   statRep,
		"adversarial_evaluation_results.json": advRep,
		"post_market_evaluation_results.json": combined,
	}
	for name, doc := range outputs {
		if err := writeJSON(filepath.Join(outDir, name), doc); err != nil {
			return err
		}
	}

	fmt.Printf("Post-market evaluation %s completed. Results in %s\n", combined.RunID, outDir)
	return nil
}

// collectExclusions merges load-time skips and exhausted-retry failures so
// every omission is visible in the run artifact.
func collectExclusions(synthLoad, rwdLoad []loader.Failure, rwdResult, synthResult evaluation.DatasetResult) map[string][]report.Exclusion {
	exclusions := make(map[string][]report.Exclusion)
	add := func(key string, failures []loader.Failure) {
		for _, f := range failures {
			exclusions[key] = append(exclusions[key], report.Exclusion{File: f.Name, Reason: f.Reason})
		}
	}
	add("synthetic", synthLoad)
	add("rwd", rwdLoad)
	add("adversarial_synthetic", synthResult.Failures)
	add("adversarial_rwd", rwdResult.Failures)
	if len(exclusions) == 0 {
		return nil
	}
	return exclusions
}

func buildAdversarial(cmd *cobra.Command, cfg *config.Config) (*evaluation.Adversarial, *telemetry.Metrics) {
	workers, _ := cmd.Flags().GetInt("workers")
	if workers <= 0 {
		workers = cfg.Run.Workers
	}

	tel := telemetry.New()
	eval := &evaluation.Adversarial{
		Client:    predictor.New(cfg.Predictor),
		Workers:   workers,
		Horizon:   cfg.Predictor.Horizon(),
		Telemetry: tel,
	}
	return eval, tel
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func warnExclusions(axis string, failures []loader.Failure) {
	for _, f := range failures {
		log.Warn().Str("axis", axis).Str("file", f.Name).Str("reason", f.Reason).Msg("file excluded from evaluation")
	}
}

func writeJSON(path string, doc interface{}) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
