package influence

import (
	"fmt"
	"math"

	"panelfit/domain/panel"
	"panelfit/internal/regression"
)

// DefaultNumerator gives the conventional 4/n cutoff.
const DefaultNumerator = 4.0

// Cutoff returns numerator/n, the Cook's distance above which a row is influential.
func Cutoff(numerator float64, n int) float64 {
	if n <= 0 {
		return math.Inf(1)
	}
	return numerator / float64(n)
}

// exactFitTolerance bounds SSR/SST below which residuals are rounding noise.
const exactFitTolerance = 1e-20

// CooksDistance computes D_i = e_i²/(p·s²) · h_i/(1-h_i)² for every row of a fit.
// An exact fit has no residual scale, and every distance is NaN.
func CooksDistance(m *regression.Model) []float64 {
	p := float64(m.NParams())
	d := make([]float64, len(m.Residuals))
	if m.SSR <= exactFitTolerance*m.SST {
		for i := range d {
			d[i] = math.NaN()
		}
		return d
	}
	for i, e := range m.Residuals {
		h := m.Leverage[i]
		d[i] = (e * e / (p * m.Sigma2)) * (h / ((1 - h) * (1 - h)))
	}
	return d
}

// OutputInfluence is the influence analysis of one output variable.
type OutputInfluence struct {
	Output      string
	Distances   []float64
	Influential []int
}

// Result is the jointly pruned group plus per-output diagnostics.
type Result struct {
	Group   panel.Group
	Cutoff  float64
	Removed int
	Outputs []OutputInfluence
}

// InfluentialCount returns how many rows were flagged for an output.
func (r Result) InfluentialCount(output string) int {
	for _, o := range r.Outputs {
		if o.Output == output {
			return len(o.Influential)
		}
	}
	return 0
}

// Prune drops every row whose Cook's distance exceeds the cutoff for at
// least one of the given fits. All fits must come from g in row order; the
// single surviving set feeds every final refit.
func Prune(g panel.Group, fits []*regression.Model, numerator float64) (Result, error) {
	n := g.Len()
	cutoff := Cutoff(numerator, n)

	keep := make([]bool, n)
	for i := range keep {
		keep[i] = true
	}

	outputs := make([]OutputInfluence, 0, len(fits))
	for _, m := range fits {
		if m.NObs != n {
			return Result{}, fmt.Errorf("fit for %q has %d rows, group has %d", m.Output, m.NObs, n)
		}
		oi := OutputInfluence{Output: m.Output, Distances: CooksDistance(m)}
		for i, d := range oi.Distances {
			// NaN compares false, so undefined distances are never influential.
			if d > cutoff {
				oi.Influential = append(oi.Influential, i)
				keep[i] = false
			}
		}
		outputs = append(outputs, oi)
	}

	pruned := g.Keep(keep)
	return Result{
		Group:   pruned,
		Cutoff:  cutoff,
		Removed: n - pruned.Len(),
		Outputs: outputs,
	}, nil
}
