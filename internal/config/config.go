package config

import (
	"os"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"panelfit/domain/panel"
	"panelfit/internal/errors"
	"panelfit/internal/pipeline"
	"panelfit/internal/screening"
)

// EnvPrefix prefixes every environment variable, e.g. PANELFIT_WORKERS.
const EnvPrefix = "PANELFIT"

// Config represents the complete application configuration
type Config struct {
	Input     InputConfig     `yaml:"input" envconfig:"INPUT"`
	Output    OutputConfig    `yaml:"output" envconfig:"OUTPUT"`
	Variables VariablesConfig `yaml:"variables" envconfig:"VARIABLES"`
	Screen    ScreenConfig    `yaml:"screen" envconfig:"SCREEN"`
	Influence InfluenceConfig `yaml:"influence" envconfig:"INFLUENCE"`
	Database  DatabaseConfig  `yaml:"database" envconfig:"DATABASE"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOG"`

	// Workers bounds concurrent groups; 0 means GOMAXPROCS.
	Workers int `yaml:"workers" envconfig:"WORKERS" default:"0" validate:"gte=0"`
}

// InputConfig describes the panel table source
type InputConfig struct {
	Path          string `yaml:"path" envconfig:"PATH"`
	Sheet         string `yaml:"sheet" envconfig:"SHEET"`
	DropNonFinite bool   `yaml:"drop_non_finite" envconfig:"DROP_NON_FINITE" default:"true"`
}

// OutputConfig holds the result destinations
type OutputConfig struct {
	ResultsPath     string `yaml:"results_path" envconfig:"RESULTS_PATH" default:"regression_results.csv" validate:"required"`
	DiagnosticsPath string `yaml:"diagnostics_path" envconfig:"DIAGNOSTICS_PATH" default:"regression_diagnostics.csv"`
	InfluencePath   string `yaml:"influence_path" envconfig:"INFLUENCE_PATH"`
	ClampRSquared   bool   `yaml:"clamp_r_squared" envconfig:"CLAMP_R_SQUARED" default:"false"`
}

// VariablesConfig fixes the regression schema
type VariablesConfig struct {
	Inputs  []string `yaml:"inputs" envconfig:"INPUTS" default:"Interest Rate,Vat Rate,Corporate Tax,Government Expenditure,Import Tariff" validate:"min=1,dive,required"`
	Outputs []string `yaml:"outputs" envconfig:"OUTPUTS" default:"Real GDP Growth,Inflation,Unemployment,Budget Balance,Approval Index" validate:"min=1,dive,required"`
}

// ScreenConfig selects the outlier-bound policy
type ScreenConfig struct {
	Policy        string  `yaml:"policy" envconfig:"POLICY" default:"median_iqr" validate:"oneof=median_iqr tukey none"`
	Multiplier    float64 `yaml:"multiplier" envconfig:"MULTIPLIER" default:"0" validate:"gte=0"` // 0 means the policy default
	Interpolation string  `yaml:"interpolation" envconfig:"INTERPOLATION" default:"nearest" validate:"oneof=nearest linear"`

	// Variables to screen; empty means the outputs.
	Variables []string `yaml:"variables" envconfig:"VARIABLES" validate:"dive,required"`

	// Ranges are only read from the YAML file.
	Ranges []screening.RangeRule `yaml:"ranges" ignored:"true" validate:"dive"`
}

// InfluenceConfig controls Cook's distance pruning
type InfluenceConfig struct {
	Prune     bool    `yaml:"prune" envconfig:"PRUNE" default:"true"`
	Numerator float64 `yaml:"numerator" envconfig:"NUMERATOR" default:"4" validate:"gt=0"`
}

// DatabaseConfig holds the optional result store connection
type DatabaseConfig struct {
	URL string `yaml:"url" envconfig:"URL"`
}

// LoggingConfig holds the log verbosity
type LoggingConfig struct {
	Level string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=error warn info debug trace ERROR WARN INFO DEBUG TRACE"`
}

// Load reads defaults and environment variables, overlays the YAML file at
// path when one is given, and validates the result. Keys present in the
// file win over the environment.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, err, "failed to load config from env")
	}

	if path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.IOError(path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err, "failed to parse config file "+path)
	}
	return nil
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err, "config validation failed")
	}
	schema := c.Schema()
	if err := schema.Validate(); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err, "invalid variable lists")
	}
	for _, rule := range c.Screen.Ranges {
		if rule.Min != nil && rule.Max != nil && *rule.Min > *rule.Max {
			return errors.Newf(errors.CodeConfigInvalid, "range for %q has min %g above max %g", rule.Variable, *rule.Min, *rule.Max)
		}
	}
	return nil
}

// Schema returns the configured variable lists.
func (c *Config) Schema() panel.Schema {
	return panel.Schema{
		Inputs:  trimAll(c.Variables.Inputs),
		Outputs: trimAll(c.Variables.Outputs),
	}
}

// Pipeline converts the configuration into the immutable value handed to
// the runner.
func (c *Config) Pipeline() (pipeline.Config, error) {
	schema := c.Schema()
	policy := screening.Policy(c.Screen.Policy)
	multiplier := c.Screen.Multiplier
	if multiplier == 0 {
		multiplier = screening.DefaultMultiplier(policy)
	}

	screenVars := trimAll(c.Screen.Variables)
	if len(screenVars) == 0 {
		screenVars = append([]string(nil), schema.Outputs...)
	}

	workers := c.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	pc := pipeline.Config{
		Schema:          schema,
		ScreenVariables: screenVars,
		Screen: screening.Config{
			Policy:        policy,
			Multiplier:    multiplier,
			Interpolation: screening.Interpolation(c.Screen.Interpolation),
		},
		Ranges:         c.Screen.Ranges,
		PruneInfluence: c.Influence.Prune,
		CooksNumerator: c.Influence.Numerator,
		Workers:        workers,
	}
	if err := pc.Validate(); err != nil {
		return pipeline.Config{}, errors.WithCode(errors.CodeConfigInvalid, err, "invalid pipeline settings")
	}
	return pc, nil
}

func trimAll(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}
