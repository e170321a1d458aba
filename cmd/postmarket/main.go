package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	appName = "postmarket"
	version = "v1.2.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Post-market evaluation of synthetic clinical time series",
		Version: version,
		Long: `postmarket evaluates whether synthetically generated clinical records
(blood glucose, insulin, nutrition) are physiologically plausible, internally
consistent, and comparable to real-world data under the STAR prediction model.

Three independent evaluation axes are available as subcommands; 'run'
executes all of them and bundles the results into one artifact.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Path to evaluation config YAML (defaults built in)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")

	expertCmd := &cobra.Command{
		Use:   "expert",
		Short: "Run expert-knowledge criteria over synthetic samples",
		Long:  "Checks glucose plausibility ranges and the subcutaneous insulin exclusion window",
		RunE:  runExpert,
	}
	expertCmd.Flags().String("synthetic", "data/synthetic_samples", "Directory containing synthetic samples")
	expertCmd.Flags().String("out", "expert_knowledge_results.json", "Output JSON file path")

	statisticalCmd := &cobra.Command{
		Use:   "statistical",
		Short: "Run statistical consistency checks over synthetic samples",
		Long:  "Checks required fields, IV rates, diabetic status validity, and glucose measurement density",
		RunE:  runStatistical,
	}
	statisticalCmd.Flags().String("synthetic", "data/synthetic_samples", "Directory containing synthetic samples")
	statisticalCmd.Flags().String("out", "statistical_analysis_results.json", "Output JSON file path")

	adversarialCmd := &cobra.Command{
		Use:   "adversarial",
		Short: "Compare STAR model performance on synthetic vs real-world data",
		Long:  "Calls the STAR prediction API for every evaluable future glucose sample and compares coverage and error metrics between the two datasets",
		RunE:  runAdversarial,
	}
	adversarialCmd.Flags().String("synthetic", "data/synthetic_samples", "Directory containing synthetic samples")
	adversarialCmd.Flags().String("rwd", "data/original_samples", "Directory containing real-world samples")
	adversarialCmd.Flags().String("out", "adversarial_evaluation_results.json", "Output JSON file path")
	adversarialCmd.Flags().Int("workers", 0, "Prediction worker pool size (0 = from config)")
	adversarialCmd.Flags().String("metrics-addr", "", "Serve /health and /metrics on this address while running")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run all three evaluation axes and combine the results",
		RunE:  runAll,
	}
	runCmd.Flags().String("synthetic", "data/synthetic_samples", "Directory containing synthetic samples")
	runCmd.Flags().String("rwd", "data/original_samples", "Directory containing real-world samples")
	runCmd.Flags().String("out-dir", "output", "Directory for the result documents")
	runCmd.Flags().Int("workers", 0, "Prediction worker pool size (0 = from config)")
	runCmd.Flags().String("metrics-addr", "", "Serve /health and /metrics on this address while running")

	rootCmd.AddCommand(expertCmd)
	rootCmd.AddCommand(statisticalCmd)
	rootCmd.AddCommand(adversarialCmd)
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
