package report

import "panelfit/domain/results"

// ClampRSquared returns a copy of records with negative R² reported as 0.
// It is a read-side transform: fitted records keep the raw value.
func ClampRSquared(records []results.ResultRecord) []results.ResultRecord {
	out := make([]results.ResultRecord, len(records))
	for i, r := range records {
		if r.RSquared < 0 {
			r.RSquared = 0
		}
		out[i] = r
	}
	return out
}
