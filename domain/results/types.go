package results

import (
	"math"
	"sort"
	"strconv"

	"panelfit/domain/core"
	"panelfit/domain/panel"
)

// Stage names where a unit can fail.
type Stage string

const (
	StageRange   Stage = "range_filter"
	StageScreen  Stage = "screen"
	StageInitial Stage = "initial_fit"
	StagePrune   Stage = "prune"
	StageFinal   Stage = "final_fit"
)

// ResultRecord is the emitted summary of one (country, period, output variable) fit.
// Coefficients and PValues are aligned with the schema inputs.
type ResultRecord struct {
	Country        string    `json:"country"`
	Period         int       `json:"period"`
	OutputVariable string    `json:"output_variable"`
	NRows          int       `json:"n_rows"`
	RSquared       float64   `json:"r_squared"`
	FPValue        float64   `json:"f_p_value"`
	Intercept      float64   `json:"intercept"`
	Coefficients   []float64 `json:"coefficients"`
	PValues        []float64 `json:"p_values"`
}

// Key returns the group the record belongs to.
func (r ResultRecord) Key() panel.GroupKey {
	return panel.GroupKey{Country: r.Country, Period: r.Period}
}

// Diagnostic describes one skipped unit.
type Diagnostic struct {
	Country        string           `json:"country"`
	Period         int              `json:"period"`
	OutputVariable string           `json:"output_variable"`
	Kind           core.FailureKind `json:"failure_kind"`
	Stage          Stage            `json:"stage"`
	RowsBefore     int              `json:"rows_before"`
	RowsAfter      int              `json:"rows_after"`
	Message        string           `json:"message"`
}

// Summary aggregates run-level counters.
type Summary struct {
	Groups          int                      `json:"groups"`
	RowsIn          int                      `json:"rows_in"`
	RowsRangeFilter int                      `json:"rows_range_filtered"`
	RowsScreened    int                      `json:"rows_screened"`
	RowsPruned      int                      `json:"rows_pruned"`
	UnitsEmitted    int                      `json:"units_emitted"`
	UnitsSkipped    int                      `json:"units_skipped"`
	SkippedByKind   map[core.FailureKind]int `json:"skipped_by_kind"`
}

// Header returns the fixed output columns for a schema:
// country, period, output_variable, n_rows, r_squared, f_p_value, intercept,
// then a _coef and _pvalue column pair per input.
func Header(schema panel.Schema) []string {
	h := []string{"country", "period", "output_variable", "n_rows", "r_squared", "f_p_value", "intercept"}
	for _, in := range schema.Inputs {
		h = append(h, in+"_coef", in+"_pvalue")
	}
	return h
}

// Row encodes a record in Header order.
func (r ResultRecord) Row() []string {
	row := []string{
		r.Country,
		strconv.Itoa(r.Period),
		r.OutputVariable,
		strconv.Itoa(r.NRows),
		FormatFloat(r.RSquared),
		FormatFloat(r.FPValue),
		FormatFloat(r.Intercept),
	}
	for j, c := range r.Coefficients {
		p := math.NaN()
		if j < len(r.PValues) {
			p = r.PValues[j]
		}
		row = append(row, FormatFloat(c), FormatFloat(p))
	}
	return row
}

// DiagnosticHeader lists the diagnostics columns.
func DiagnosticHeader() []string {
	return []string{"country", "period", "output_variable", "failure_kind", "stage", "rows_before", "rows_after", "message"}
}

// Row encodes a diagnostic in DiagnosticHeader order.
func (d Diagnostic) Row() []string {
	return []string{
		d.Country,
		strconv.Itoa(d.Period),
		d.OutputVariable,
		string(d.Kind),
		string(d.Stage),
		strconv.Itoa(d.RowsBefore),
		strconv.Itoa(d.RowsAfter),
		d.Message,
	}
}

// FormatFloat renders the shortest representation that round-trips.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// SortRecords orders records by (country, period, output_variable) ascending.
func SortRecords(records []ResultRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Country != b.Country {
			return a.Country < b.Country
		}
		if a.Period != b.Period {
			return a.Period < b.Period
		}
		return a.OutputVariable < b.OutputVariable
	})
}

// SortDiagnostics orders diagnostics like records, then by stage.
func SortDiagnostics(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i], diags[j]
		if a.Country != b.Country {
			return a.Country < b.Country
		}
		if a.Period != b.Period {
			return a.Period < b.Period
		}
		if a.OutputVariable != b.OutputVariable {
			return a.OutputVariable < b.OutputVariable
		}
		return a.Stage < b.Stage
	})
}
