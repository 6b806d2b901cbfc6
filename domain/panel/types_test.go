package panel

import (
	"errors"
	"math"
	"testing"

	"panelfit/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallSchema() Schema {
	return Schema{Inputs: []string{"x1", "x2"}, Outputs: []string{"y"}}
}

func TestSchemaLookup(t *testing.T) {
	s := smallSchema()

	role, idx, ok := s.Lookup("x2")
	require.True(t, ok)
	assert.Equal(t, RoleInput, role)
	assert.Equal(t, 1, idx)

	role, idx, ok = s.Lookup("y")
	require.True(t, ok)
	assert.Equal(t, RoleOutput, role)
	assert.Equal(t, 0, idx)

	_, _, ok = s.Lookup("z")
	assert.False(t, ok)
}

func TestSchemaValidate(t *testing.T) {
	assert.NoError(t, DefaultSchema().Validate())
	assert.Error(t, Schema{Inputs: []string{"a"}}.Validate())
	assert.Error(t, Schema{Inputs: []string{"a"}, Outputs: []string{"a"}}.Validate())
	assert.Error(t, Schema{Inputs: []string{""}, Outputs: []string{"b"}}.Validate())
}

func TestDefaultSchemaIsACopy(t *testing.T) {
	s := DefaultSchema()
	s.Inputs[0] = "changed"
	assert.Equal(t, "Interest Rate", DefaultInputs[0])
}

func TestGroupColumnAndKeep(t *testing.T) {
	s := smallSchema()
	rows := []Observation{
		{Country: "A", Period: 1, Inputs: []float64{1, 2}, Outputs: []float64{3}},
		{Country: "A", Period: 1, Inputs: []float64{4, 5}, Outputs: []float64{6}},
		{Country: "A", Period: 1, Inputs: []float64{7, 8}, Outputs: []float64{9}},
	}
	g := NewGroup(GroupKey{"A", 1}, s, rows)
	rows[0].Country = "mutated"
	assert.Equal(t, "A", g.Rows[0].Country, "group must own its rows")

	col, err := g.Column("x2")
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 5, 8}, col)

	col, err = g.Column("y")
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 6, 9}, col)

	_, err = g.Column("missing")
	assert.True(t, errors.Is(err, core.ErrMissingData))

	kept := g.Keep([]bool{true, false, true})
	assert.Equal(t, 2, kept.Len())
	assert.Equal(t, 3, g.Len())
	assert.Equal(t, 7.0, kept.Rows[1].Inputs[0])
}

func TestObservationFinite(t *testing.T) {
	o := Observation{Inputs: []float64{1, 2}, Outputs: []float64{3}}
	assert.True(t, o.Finite())
	o.Outputs = []float64{math.Inf(-1)}
	assert.False(t, o.Finite())
	o.Outputs = []float64{math.NaN()}
	assert.False(t, o.Finite())
}

func TestGroupKeyLess(t *testing.T) {
	assert.True(t, GroupKey{"A", 2}.Less(GroupKey{"B", 1}))
	assert.True(t, GroupKey{"A", 1}.Less(GroupKey{"A", 2}))
	assert.False(t, GroupKey{"A", 2}.Less(GroupKey{"A", 2}))
	assert.Equal(t, "A/2", GroupKey{"A", 2}.String())
}
