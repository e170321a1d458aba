package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level evaluation configuration. All clinical constants
// live here so validators receive them explicitly instead of reading globals.
type Config struct {
	Clinical  ClinicalConfig  `yaml:"clinical"`
	Predictor PredictorConfig `yaml:"predictor"`
	Run       RunConfig       `yaml:"run"`
}

// ClinicalConfig holds the expert-knowledge and statistical rule constants.
type ClinicalConfig struct {
	// Humanly plausible blood glucose range in mmol/L.
	GlucoseMinMmol float64 `yaml:"glucose_min_mmol"`
	GlucoseMaxMmol float64 `yaml:"glucose_max_mmol"`

	// Lookback from the evaluation instant for the subcutaneous insulin
	// exclusion: 6h evaluation window plus 6h of residual insulin action.
	InsulinLookbackHours int `yaml:"insulin_lookback_hours"`

	// Window and minimum sample count for the glucose density check.
	DensityWindowHours int `yaml:"density_window_hours"`
	MinGlucoseSamples  int `yaml:"min_glucose_samples"`

	// Episode fields that must be present, in report order.
	RequiredFields []string `yaml:"required_fields"`
}

// PredictorConfig configures the STAR prediction API client.
type PredictorConfig struct {
	URL                string  `yaml:"url"`
	TimeoutSeconds     int     `yaml:"timeout_seconds"`
	MaxRetries         int     `yaml:"max_retries"`
	RetryDelaySeconds  float64 `yaml:"retry_delay_seconds"`
	RequestsPerSecond  float64 `yaml:"requests_per_second"`
	Burst              int     `yaml:"burst"`
	HorizonMinutes     int     `yaml:"horizon_minutes"`
	BreakerMaxFailures int     `yaml:"breaker_max_failures"`
}

// RunConfig bounds the per-record fan-out.
type RunConfig struct {
	Workers int `yaml:"workers"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Clinical: ClinicalConfig{
			GlucoseMinMmol:       1.2,
			GlucoseMaxMmol:       110,
			InsulinLookbackHours: 12,
			DensityWindowHours:   6,
			MinGlucoseSamples:    3,
			RequiredFields: []string{
				"diabeticStatus",
				"startTime",
				"bloodGlucose",
				"insulinInfusion",
				"insulinBolus",
				"nutritionInfusion",
				"nutritionBolus",
			},
		},
		Predictor: PredictorConfig{
			URL:                "https://demo.insilicare.com/api/star/REALM/validation",
			TimeoutSeconds:     5,
			MaxRetries:         3,
			RetryDelaySeconds:  2.0,
			RequestsPerSecond:  10,
			Burst:              10,
			HorizonMinutes:     180,
			BreakerMaxFailures: 3,
		},
		Run: RunConfig{
			Workers: 10,
		},
	}
}

// Load reads the configuration from path, or returns defaults when path is
// empty. Validation failures are fatal to the run.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return c, nil
}

// Validate checks the constants the evaluators depend on.
func (c *Config) Validate() error {
	if c.Clinical.GlucoseMinMmol >= c.Clinical.GlucoseMaxMmol {
		return fmt.Errorf("glucose range [%.2f, %.2f] is empty",
			c.Clinical.GlucoseMinMmol, c.Clinical.GlucoseMaxMmol)
	}
	if c.Clinical.InsulinLookbackHours <= 0 {
		return fmt.Errorf("insulin lookback must be positive, got %dh", c.Clinical.InsulinLookbackHours)
	}
	if c.Clinical.DensityWindowHours <= 0 {
		return fmt.Errorf("density window must be positive, got %dh", c.Clinical.DensityWindowHours)
	}
	if c.Clinical.MinGlucoseSamples <= 0 {
		return fmt.Errorf("minimum glucose sample count must be positive, got %d", c.Clinical.MinGlucoseSamples)
	}
	if len(c.Clinical.RequiredFields) == 0 {
		return fmt.Errorf("required field list is empty")
	}
	if c.Predictor.URL == "" {
		return fmt.Errorf("predictor URL is required")
	}
	if c.Predictor.TimeoutSeconds <= 0 {
		return fmt.Errorf("predictor timeout must be positive, got %ds", c.Predictor.TimeoutSeconds)
	}
	if c.Predictor.MaxRetries < 1 {
		return fmt.Errorf("predictor retries must be at least 1, got %d", c.Predictor.MaxRetries)
	}
	if c.Predictor.HorizonMinutes <= 0 {
		return fmt.Errorf("prediction horizon must be positive, got %dm", c.Predictor.HorizonMinutes)
	}
	if c.Run.Workers <= 0 {
		return fmt.Errorf("worker count must be positive, got %d", c.Run.Workers)
	}
	return nil
}

func (c *ClinicalConfig) InsulinLookback() time.Duration {
	return time.Duration(c.InsulinLookbackHours) * time.Hour
}

func (c *ClinicalConfig) DensityWindow() time.Duration {
	return time.Duration(c.DensityWindowHours) * time.Hour
}

func (c *PredictorConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c *PredictorConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds * float64(time.Second))
}

func (c *PredictorConfig) Horizon() time.Duration {
	return time.Duration(c.HorizonMinutes) * time.Minute
}
