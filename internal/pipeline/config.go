package pipeline

import (
	"fmt"
	"runtime"

	"panelfit/domain/panel"
	"panelfit/internal/influence"
	"panelfit/internal/screening"
)

// Config is the immutable description of one run. NewRunner takes a deep
// copy, so callers may reuse or modify their value afterwards.
type Config struct {
	Schema panel.Schema

	// ScreenVariables are screened for gross errors; defaults to the outputs.
	ScreenVariables []string
	Screen          screening.Config
	Ranges          []screening.RangeRule

	PruneInfluence bool
	CooksNumerator float64

	Workers int
}

// DefaultConfig reproduces the main analysis: median ± 10·IQR screening on
// the outputs, then joint Cook's distance pruning at 4/n.
func DefaultConfig() Config {
	schema := panel.DefaultSchema()
	return Config{
		Schema:          schema,
		ScreenVariables: append([]string(nil), schema.Outputs...),
		Screen:          screening.DefaultConfig(),
		PruneInfluence:  true,
		CooksNumerator:  influence.DefaultNumerator,
		Workers:         runtime.GOMAXPROCS(0),
	}
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	if err := c.Schema.Validate(); err != nil {
		return err
	}
	if err := c.Screen.Validate(); err != nil {
		return err
	}
	if c.PruneInfluence && c.CooksNumerator <= 0 {
		return fmt.Errorf("cook's distance numerator must be positive, got %g", c.CooksNumerator)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	return nil
}

func (c Config) clone() Config {
	out := c
	out.Schema = panel.Schema{
		Inputs:  append([]string(nil), c.Schema.Inputs...),
		Outputs: append([]string(nil), c.Schema.Outputs...),
	}
	out.ScreenVariables = append([]string(nil), c.ScreenVariables...)
	out.Ranges = make([]screening.RangeRule, len(c.Ranges))
	for i, r := range c.Ranges {
		out.Ranges[i] = screening.RangeRule{Variable: r.Variable, Min: copyFloat(r.Min), Max: copyFloat(r.Max)}
	}
	if out.ScreenVariables == nil {
		out.ScreenVariables = append([]string(nil), c.Schema.Outputs...)
	}
	return out
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
