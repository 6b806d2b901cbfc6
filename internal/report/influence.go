package report

import (
	"strconv"

	"panelfit/domain/results"
	"panelfit/internal/pipeline"
)

// InfluenceHeader lists the Cook's distance table columns. Row is the
// position within the screened group.
func InfluenceHeader() []string {
	return []string{"country", "period", "output_variable", "row", "cooks_distance", "cutoff", "influential"}
}

// InfluenceRows flattens per-group Cook's distances for plotting.
func InfluenceRows(groups []pipeline.GroupInfluence) [][]string {
	var rows [][]string
	for _, g := range groups {
		for _, o := range g.Outputs {
			flagged := make(map[int]bool, len(o.Influential))
			for _, i := range o.Influential {
				flagged[i] = true
			}
			for i, d := range o.Distances {
				rows = append(rows, []string{
					g.Group.Country,
					strconv.Itoa(g.Group.Period),
					o.Output,
					strconv.Itoa(i),
					results.FormatFloat(d),
					results.FormatFloat(g.Cutoff),
					strconv.FormatBool(flagged[i]),
				})
			}
		}
	}
	return rows
}
