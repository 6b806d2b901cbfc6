package pipeline

import (
	"sort"

	"panelfit/domain/core"
	"panelfit/domain/results"
)

// aggregate merges group outcomes into one output: records and diagnostics
// sorted by (country, period, output_variable) and the run summary.
func aggregate(outcomes []groupOutcome) *Output {
	out := &Output{
		Records:     []results.ResultRecord{},
		Diagnostics: []results.Diagnostic{},
		Summary: results.Summary{
			Groups:        len(outcomes),
			SkippedByKind: make(map[core.FailureKind]int),
		},
	}

	for _, o := range outcomes {
		out.Records = append(out.Records, o.records...)
		out.Diagnostics = append(out.Diagnostics, o.diagnostics...)
		if o.influence != nil {
			out.Influence = append(out.Influence, *o.influence)
		}

		out.Summary.RowsIn += o.rowsIn
		out.Summary.RowsRangeFilter += o.rangeRemoved
		out.Summary.RowsScreened += o.screenRemoved
		out.Summary.RowsPruned += o.pruneRemoved
		for _, d := range o.diagnostics {
			out.Summary.SkippedByKind[d.Kind]++
		}
	}

	results.SortRecords(out.Records)
	results.SortDiagnostics(out.Diagnostics)
	sort.SliceStable(out.Influence, func(i, j int) bool {
		return out.Influence[i].Group.Less(out.Influence[j].Group)
	})

	out.Summary.UnitsEmitted = len(out.Records)
	out.Summary.UnitsSkipped = len(out.Diagnostics)
	return out
}
