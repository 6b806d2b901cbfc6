package screening

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

// Interpolation selects how quartiles are read from sorted data.
type Interpolation string

const (
	// InterpolationNearest picks the element at round(q·(n-1)).
	InterpolationNearest Interpolation = "nearest"
	// InterpolationLinear interpolates between the two neighbours of q·(n-1).
	InterpolationLinear Interpolation = "linear"
)

// Quartiles summarises the spread of one variable.
type Quartiles struct {
	Q1     float64
	Median float64
	Q3     float64
	N      int
}

// IQR returns Q3 - Q1.
func (q Quartiles) IQR() float64 {
	return q.Q3 - q.Q1
}

// ComputeQuartiles computes Q1, median and Q3 over the finite values of data.
func ComputeQuartiles(data []float64, method Interpolation) (Quartiles, error) {
	sorted := make([]float64, 0, len(data))
	for _, v := range data {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return Quartiles{}, fmt.Errorf("no finite values")
	}
	sort.Float64s(sorted)

	median, err := stats.Median(sorted)
	if err != nil {
		return Quartiles{}, err
	}

	q1, err := quantileSorted(sorted, 0.25, method)
	if err != nil {
		return Quartiles{}, err
	}
	q3, err := quantileSorted(sorted, 0.75, method)
	if err != nil {
		return Quartiles{}, err
	}

	return Quartiles{Q1: q1, Median: median, Q3: q3, N: len(sorted)}, nil
}

func quantileSorted(sorted []float64, q float64, method Interpolation) (float64, error) {
	pos := q * float64(len(sorted)-1)
	switch method {
	case InterpolationNearest, "":
		return sorted[int(math.Round(pos))], nil
	case InterpolationLinear:
		lo := int(math.Floor(pos))
		hi := int(math.Ceil(pos))
		frac := pos - float64(lo)
		return sorted[lo] + frac*(sorted[hi]-sorted[lo]), nil
	default:
		return math.NaN(), fmt.Errorf("unknown interpolation %q", method)
	}
}
