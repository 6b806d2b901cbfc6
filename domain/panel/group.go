package panel

import (
	"panelfit/domain/core"
)

// Group is an owned snapshot of the observations sharing one GroupKey.
// Filtering produces a new Group; the receiver is never modified.
type Group struct {
	Key    GroupKey
	Schema Schema
	Rows   []Observation
}

// NewGroup copies rows into a new snapshot.
func NewGroup(key GroupKey, schema Schema, rows []Observation) Group {
	owned := make([]Observation, len(rows))
	copy(owned, rows)
	return Group{Key: key, Schema: schema, Rows: owned}
}

// Len returns the working row count.
func (g Group) Len() int {
	return len(g.Rows)
}

// Column extracts one variable across all rows.
func (g Group) Column(name string) ([]float64, error) {
	role, idx, ok := g.Schema.Lookup(name)
	if !ok {
		return nil, core.NewMissingVariableError(name)
	}
	col := make([]float64, len(g.Rows))
	for i, row := range g.Rows {
		if role == RoleInput {
			col[i] = row.Inputs[idx]
		} else {
			col[i] = row.Outputs[idx]
		}
	}
	return col, nil
}

// Keep returns a new group holding the rows whose mask entry is true.
func (g Group) Keep(mask []bool) Group {
	rows := make([]Observation, 0, len(g.Rows))
	for i, row := range g.Rows {
		if mask[i] {
			rows = append(rows, row)
		}
	}
	return Group{Key: g.Key, Schema: g.Schema, Rows: rows}
}
