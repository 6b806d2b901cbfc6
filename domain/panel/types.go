package panel

import (
	"fmt"
	"math"

	"panelfit/domain/core"
)

// Default variable names of the policy simulation panel.
var (
	DefaultInputs = []string{
		"Interest Rate",
		"Vat Rate",
		"Corporate Tax",
		"Government Expenditure",
		"Import Tariff",
	}
	DefaultOutputs = []string{
		"Real GDP Growth",
		"Inflation",
		"Unemployment",
		"Budget Balance",
		"Approval Index",
	}
)

// Schema fixes the ordered input and output variables of a panel.
type Schema struct {
	Inputs  []string `json:"inputs"`
	Outputs []string `json:"outputs"`
}

// DefaultSchema returns the ten-variable schema of the policy panel.
func DefaultSchema() Schema {
	return Schema{
		Inputs:  append([]string(nil), DefaultInputs...),
		Outputs: append([]string(nil), DefaultOutputs...),
	}
}

// Role tells whether a variable is an input or an output.
type Role int

const (
	RoleInput Role = iota
	RoleOutput
)

// Lookup resolves a variable name to its role and position.
func (s Schema) Lookup(name string) (Role, int, bool) {
	for i, v := range s.Inputs {
		if v == name {
			return RoleInput, i, true
		}
	}
	for i, v := range s.Outputs {
		if v == name {
			return RoleOutput, i, true
		}
	}
	return 0, 0, false
}

// Variables returns inputs followed by outputs.
func (s Schema) Variables() []string {
	vars := make([]string, 0, len(s.Inputs)+len(s.Outputs))
	vars = append(vars, s.Inputs...)
	return append(vars, s.Outputs...)
}

// Validate checks the schema has variables and no duplicate names.
func (s Schema) Validate() error {
	if len(s.Inputs) == 0 || len(s.Outputs) == 0 {
		return fmt.Errorf("schema needs at least one input and one output variable")
	}
	seen := make(map[string]bool)
	for _, v := range s.Variables() {
		if v == "" {
			return fmt.Errorf("schema contains an empty variable name")
		}
		if seen[v] {
			return fmt.Errorf("schema variable %q declared twice", v)
		}
		seen[v] = true
	}
	return nil
}

// Observation is one panel row. It is produced once by the reader and
// never mutated afterwards.
type Observation struct {
	Country string
	Period  int
	Inputs  []float64
	Outputs []float64
}

// Value returns the value of a schema variable for this observation.
func (o Observation) Value(s Schema, name string) (float64, error) {
	role, idx, ok := s.Lookup(name)
	if !ok {
		return math.NaN(), core.NewMissingVariableError(name)
	}
	if role == RoleInput {
		return o.Inputs[idx], nil
	}
	return o.Outputs[idx], nil
}

// Finite reports whether every variable of the observation is finite.
func (o Observation) Finite() bool {
	for _, v := range o.Inputs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	for _, v := range o.Outputs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Table is the fully materialized panel.
type Table struct {
	Schema Schema
	Rows   []Observation
}

// Len returns the number of observations.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// GroupKey identifies one unit of independent analysis.
type GroupKey struct {
	Country string `json:"country"`
	Period  int    `json:"period"`
}

// Less orders keys by country, then period.
func (k GroupKey) Less(other GroupKey) bool {
	if k.Country != other.Country {
		return k.Country < other.Country
	}
	return k.Period < other.Period
}

func (k GroupKey) String() string {
	return fmt.Sprintf("%s/%d", k.Country, k.Period)
}
