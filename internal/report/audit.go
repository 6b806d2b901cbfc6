package report

import (
	"math"
	"sort"
	"strconv"

	"panelfit/domain/panel"
)

// MissingSentinel is the placeholder value the simulation writes for
// failed runs.
const MissingSentinel = -100

// IrregularCount tallies suspicious values of one variable within one group.
type IrregularCount struct {
	Country      string
	Period       int
	Variable     string
	NaN          int
	Inf          int
	Zero         int
	Sentinel     int
	Observations int
}

// Irregular returns NaN plus Inf.
func (c IrregularCount) Irregular() int {
	return c.NaN + c.Inf
}

// AuditHeader lists the audit table columns.
func AuditHeader() []string {
	return []string{"country", "period", "variable", "nan_count", "inf_count", "zero_count", "minus100_count", "total_irregular_count", "total_observations"}
}

// Row encodes the count in AuditHeader order.
func (c IrregularCount) Row() []string {
	return []string{
		c.Country,
		strconv.Itoa(c.Period),
		c.Variable,
		strconv.Itoa(c.NaN),
		strconv.Itoa(c.Inf),
		strconv.Itoa(c.Zero),
		strconv.Itoa(c.Sentinel),
		strconv.Itoa(c.Irregular()),
		strconv.Itoa(c.Observations),
	}
}

// Audit counts irregular values of the given variables per group. Run it on
// the raw table, before non-finite rows are dropped. Rows are sorted by
// (country, period, variable).
func Audit(table *panel.Table, variables []string) ([]IrregularCount, error) {
	type key struct {
		group    panel.GroupKey
		variable string
	}
	counts := make(map[key]*IrregularCount)
	sizes := make(map[panel.GroupKey]int)

	for _, row := range table.Rows {
		g := panel.GroupKey{Country: row.Country, Period: row.Period}
		sizes[g]++
		for _, v := range variables {
			x, err := row.Value(table.Schema, v)
			if err != nil {
				return nil, err
			}
			k := key{group: g, variable: v}
			c, ok := counts[k]
			if !ok {
				c = &IrregularCount{Country: g.Country, Period: g.Period, Variable: v}
				counts[k] = c
			}
			switch {
			case math.IsNaN(x):
				c.NaN++
			case math.IsInf(x, 0):
				c.Inf++
			case x == 0:
				c.Zero++
			case x == MissingSentinel:
				c.Sentinel++
			}
		}
	}

	out := make([]IrregularCount, 0, len(counts))
	for k, c := range counts {
		c.Observations = sizes[k.group]
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Country != b.Country {
			return a.Country < b.Country
		}
		if a.Period != b.Period {
			return a.Period < b.Period
		}
		return a.Variable < b.Variable
	})
	return out, nil
}
