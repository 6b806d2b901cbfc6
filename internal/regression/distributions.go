package regression

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// PValueFloor is the largest p-value reported as exactly zero.
const PValueFloor = 1e-4

// TTestPValue computes the two-sided p-value of a t statistic using Student's t-distribution
func TTestPValue(tStatistic float64, degreesOfFreedom int) float64 {
	if degreesOfFreedom <= 0 || math.IsNaN(tStatistic) {
		return math.NaN()
	}
	if math.IsInf(tStatistic, 0) {
		return 0
	}

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(degreesOfFreedom)}
	return math.Min(1, 2*tDist.Survival(math.Abs(tStatistic)))
}

// FTestPValue computes the upper-tail p-value of an F statistic
func FTestPValue(fStatistic float64, df1, df2 int) float64 {
	if df1 <= 0 || df2 <= 0 || math.IsNaN(fStatistic) {
		return math.NaN()
	}
	if math.IsInf(fStatistic, 1) {
		return 0
	}
	if fStatistic <= 0 {
		return 1
	}

	fDist := distuv.F{D1: float64(df1), D2: float64(df2)}
	return fDist.Survival(fStatistic)
}

// TruncatePValue reports p-values at or below PValueFloor as exactly 0.
// It guards against underflow noise and makes no statistical claim.
func TruncatePValue(p float64) float64 {
	if p <= PValueFloor {
		return 0
	}
	return p
}
