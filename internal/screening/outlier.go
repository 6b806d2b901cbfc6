package screening

import (
	"fmt"

	"panelfit/domain/panel"
)

// Policy names an outlier-bound rule. Exactly one is chosen per run.
type Policy string

const (
	// PolicyMedianIQR keeps values within median ± N·IQR. With the default
	// N = 10 it only removes gross data-entry errors.
	PolicyMedianIQR Policy = "median_iqr"
	// PolicyTukey keeps values within [Q1 - k·IQR, Q3 + k·IQR], k = 1.5 by default.
	PolicyTukey Policy = "tukey"
	// PolicyNone disables screening.
	PolicyNone Policy = "none"
)

// DefaultMultiplier returns the conventional multiplier of a policy.
func DefaultMultiplier(p Policy) float64 {
	if p == PolicyTukey {
		return 1.5
	}
	return 10
}

// Config controls the outlier screen.
type Config struct {
	Policy        Policy
	Multiplier    float64
	Interpolation Interpolation
}

// DefaultConfig screens with median ± 10·IQR.
func DefaultConfig() Config {
	return Config{
		Policy:        PolicyMedianIQR,
		Multiplier:    DefaultMultiplier(PolicyMedianIQR),
		Interpolation: InterpolationNearest,
	}
}

// Validate checks the policy name and multiplier.
func (c Config) Validate() error {
	switch c.Policy {
	case PolicyMedianIQR, PolicyTukey, PolicyNone:
	default:
		return fmt.Errorf("unknown screen policy %q", c.Policy)
	}
	if c.Policy != PolicyNone && c.Multiplier < 0 {
		return fmt.Errorf("screen multiplier must be non-negative, got %g", c.Multiplier)
	}
	switch c.Interpolation {
	case InterpolationNearest, InterpolationLinear, "":
	default:
		return fmt.Errorf("unknown interpolation %q", c.Interpolation)
	}
	return nil
}

// VariableBounds are the inclusive bounds of one variable within one group.
type VariableBounds struct {
	Variable  string
	Quartiles Quartiles
	Lower     float64
	Upper     float64
}

// Contains reports whether v lies within the bounds, inclusive.
// NaN never does.
func (b VariableBounds) Contains(v float64) bool {
	return v >= b.Lower && v <= b.Upper
}

// Result is the outcome of screening one group.
type Result struct {
	Group   panel.Group
	Bounds  []VariableBounds
	Removed int
}

// ComputeBounds derives the bounds of one variable from the group's own values.
func ComputeBounds(g panel.Group, variable string, cfg Config) (VariableBounds, error) {
	col, err := g.Column(variable)
	if err != nil {
		return VariableBounds{}, err
	}
	q, err := ComputeQuartiles(col, cfg.Interpolation)
	if err != nil {
		return VariableBounds{}, fmt.Errorf("bounds for %q: %w", variable, err)
	}

	b := VariableBounds{Variable: variable, Quartiles: q}
	iqr := q.IQR()
	switch cfg.Policy {
	case PolicyTukey:
		b.Lower = q.Q1 - cfg.Multiplier*iqr
		b.Upper = q.Q3 + cfg.Multiplier*iqr
	default:
		b.Lower = q.Median - cfg.Multiplier*iqr
		b.Upper = q.Median + cfg.Multiplier*iqr
	}
	return b, nil
}

// Screen keeps the rows whose every screened variable lies within that
// variable's bounds. Zero spread collapses the bounds to a single value;
// rows not exactly equal to it are removed.
func Screen(g panel.Group, variables []string, cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	for _, v := range variables {
		if _, err := g.Column(v); err != nil {
			return Result{}, err
		}
	}
	if cfg.Policy == PolicyNone || g.Len() == 0 {
		return Result{Group: g}, nil
	}

	keep := make([]bool, g.Len())
	for i := range keep {
		keep[i] = true
	}

	bounds := make([]VariableBounds, 0, len(variables))
	for _, v := range variables {
		col, _ := g.Column(v)
		b, err := ComputeBounds(g, v, cfg)
		if err != nil {
			// A column without a single finite value keeps nothing.
			for i := range keep {
				keep[i] = false
			}
			continue
		}
		bounds = append(bounds, b)
		for i, x := range col {
			if !b.Contains(x) {
				keep[i] = false
			}
		}
	}

	screened := g.Keep(keep)
	return Result{
		Group:   screened,
		Bounds:  bounds,
		Removed: g.Len() - screened.Len(),
	}, nil
}
