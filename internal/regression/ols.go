package regression

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"panelfit/domain/core"
	"panelfit/domain/panel"
)

// ConstTerm names the intercept column of the design matrix.
const ConstTerm = "const"

// Model holds one ordinary-least-squares fit together with the diagnostics
// needed for influence analysis. Statistics are raw: R² can be negative and
// p-values are not truncated.
type Model struct {
	Output string
	Terms  []string

	Coefficients []float64
	StdErrors    []float64
	TValues      []float64
	PValues      []float64

	Fitted    []float64
	Residuals []float64
	Leverage  []float64 // hat-matrix diagonal

	SSR        float64 // sum of squared residuals
	SST        float64 // total sum of squares around the mean
	Sigma2     float64 // residual mean squared error
	RSquared   float64
	FStatistic float64
	FPValue    float64

	NObs    int
	DFResid int
	DFModel int
	Rank    int
}

// NParams returns the number of estimated coefficients, intercept included.
func (m *Model) NParams() int {
	return len(m.Terms)
}

// Fit regresses output on inputs plus an intercept over the group rows.
func Fit(g panel.Group, inputs []string, output string) (*Model, error) {
	y, err := g.Column(output)
	if err != nil {
		return nil, err
	}
	cols := make([][]float64, len(inputs))
	for j, in := range inputs {
		if cols[j], err = g.Column(in); err != nil {
			return nil, err
		}
	}

	n, p := g.Len(), len(inputs)+1
	if n == 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrEmptyGroup, g.Key)
	}
	for i, v := range y {
		if !finite(v) {
			return nil, core.NewNonFiniteError(output, i)
		}
	}
	for j, col := range cols {
		for i, v := range col {
			if !finite(v) {
				return nil, core.NewNonFiniteError(inputs[j], i)
			}
		}
	}
	if n <= p {
		return nil, core.NewInsufficientDFError(n, p)
	}

	data := make([]float64, n*p)
	for i := 0; i < n; i++ {
		data[i*p] = 1
		for j := range cols {
			data[i*p+j+1] = cols[j][i]
		}
	}

	terms := append([]string{ConstTerm}, inputs...)
	m, err := FitMatrix(mat.NewDense(n, p, data), y, terms)
	if err != nil {
		return nil, err
	}
	m.Output = output
	return m, nil
}

// FitMatrix solves the least-squares problem for a prepared design matrix
// whose first column is the constant. The solve goes through a thin SVD so
// that rank can be checked and leverage read off the left singular vectors.
func FitMatrix(x *mat.Dense, y []float64, terms []string) (*Model, error) {
	n, p := x.Dims()
	if len(y) != n {
		return nil, fmt.Errorf("target has %d rows, design matrix %d", len(y), n)
	}
	if len(terms) != p {
		return nil, fmt.Errorf("%d term names for %d columns", len(terms), p)
	}
	if n <= p {
		return nil, core.NewInsufficientDFError(n, p)
	}

	var svd mat.SVD
	if ok := svd.Factorize(x, mat.SVDThin); !ok {
		return nil, fmt.Errorf("%w: SVD did not converge", core.ErrRankDeficient)
	}
	s := svd.Values(nil)

	// Same cutoff as LAPACK-style rank estimation: max(n,p)·ε·σ_max.
	tol := float64(max(n, p)) * s[0] * epsilon
	rank := 0
	for _, sv := range s {
		if sv > tol {
			rank++
		}
	}
	if rank < p {
		return nil, core.NewRankError(rank, p)
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	yv := mat.NewVecDense(n, append([]float64(nil), y...))

	// β = V Σ⁻¹ Uᵀ y
	var uty mat.VecDense
	uty.MulVec(u.T(), yv)
	for k := 0; k < p; k++ {
		uty.SetVec(k, uty.AtVec(k)/s[k])
	}
	var beta mat.VecDense
	beta.MulVec(&v, &uty)

	var fitted mat.VecDense
	fitted.MulVec(x, &beta)

	m := &Model{
		Terms:        append([]string(nil), terms...),
		Coefficients: make([]float64, p),
		StdErrors:    make([]float64, p),
		TValues:      make([]float64, p),
		PValues:      make([]float64, p),
		Fitted:       make([]float64, n),
		Residuals:    make([]float64, n),
		Leverage:     make([]float64, n),
		NObs:         n,
		DFResid:      n - p,
		DFModel:      p - 1,
		Rank:         rank,
	}

	mean := 0.0
	for _, yi := range y {
		mean += yi
	}
	mean /= float64(n)

	for i := 0; i < n; i++ {
		m.Fitted[i] = fitted.AtVec(i)
		m.Residuals[i] = y[i] - m.Fitted[i]
		m.SSR += m.Residuals[i] * m.Residuals[i]
		d := y[i] - mean
		m.SST += d * d

		// H = U Uᵀ, so h_ii is the squared norm of row i of U.
		h := 0.0
		for k := 0; k < p; k++ {
			uik := u.At(i, k)
			h += uik * uik
		}
		m.Leverage[i] = h
	}

	m.Sigma2 = m.SSR / float64(m.DFResid)
	m.RSquared = 1 - m.SSR/m.SST

	// diag((XᵀX)⁻¹) = Σ_k V_jk² / σ_k²
	for j := 0; j < p; j++ {
		m.Coefficients[j] = beta.AtVec(j)
		d := 0.0
		for k := 0; k < p; k++ {
			vjk := v.At(j, k)
			d += vjk * vjk / (s[k] * s[k])
		}
		m.StdErrors[j] = math.Sqrt(m.Sigma2 * d)
		m.TValues[j] = m.Coefficients[j] / m.StdErrors[j]
		m.PValues[j] = TTestPValue(m.TValues[j], m.DFResid)
	}

	if m.DFModel > 0 {
		explained := m.SST - m.SSR
		m.FStatistic = (explained / float64(m.DFModel)) / m.Sigma2
		m.FPValue = FTestPValue(m.FStatistic, m.DFModel, m.DFResid)
	} else {
		m.FStatistic = math.NaN()
		m.FPValue = math.NaN()
	}

	return m, nil
}

// FitResult is the reported view of a model: named coefficients and
// p-values, with p-values at or below PValueFloor set to 0.
type FitResult struct {
	Output       string
	Coefficients map[string]float64
	PValues      map[string]float64
	RSquared     float64
	FPValue      float64
	NRows        int
}

// Result builds the reported view of the model.
func (m *Model) Result() FitResult {
	r := FitResult{
		Output:       m.Output,
		Coefficients: make(map[string]float64, len(m.Terms)),
		PValues:      make(map[string]float64, len(m.Terms)),
		RSquared:     m.RSquared,
		FPValue:      TruncatePValue(m.FPValue),
		NRows:        m.NObs,
	}
	for i, t := range m.Terms {
		r.Coefficients[t] = m.Coefficients[i]
		r.PValues[t] = TruncatePValue(m.PValues[i])
	}
	return r
}

const epsilon = 2.220446049250313e-16

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
