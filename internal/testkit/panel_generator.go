package testkit

import (
	"fmt"
	"math/rand"

	"panelfit/domain/panel"
)

// PanelGeneratorConfig configures the synthetic panel generator
type PanelGeneratorConfig struct {
	Schema       panel.Schema `json:"schema"`
	Countries    []string     `json:"countries"`
	Periods      []int        `json:"periods"`
	RowsPerGroup int          `json:"rows_per_group"`
	NoiseStdDev  float64      `json:"noise_std_dev"`
	OutlierRate  float64      `json:"outlier_rate"`  // share of rows with a gross error in one output
	OutlierShift float64      `json:"outlier_shift"` // size of the gross error
	Seed         int64        `json:"seed"`
}

// DefaultPanelConfig returns a small panel: three countries, two periods,
// forty simulation runs per group.
func DefaultPanelConfig() PanelGeneratorConfig {
	return PanelGeneratorConfig{
		Schema:       panel.DefaultSchema(),
		Countries:    []string{"Atlantis", "Borduria", "Carpania"},
		Periods:      []int{1, 2},
		RowsPerGroup: 40,
		NoiseStdDev:  0.5,
		OutlierRate:  0,
		OutlierShift: 1e4,
		Seed:         42,
	}
}

// Injected identifies one row carrying a gross error.
type Injected struct {
	Row    int // index into Table.Rows
	Output string
}

// PanelDataGenerator produces panels whose outputs are exact linear
// functions of the inputs plus Gaussian noise.
type PanelDataGenerator struct {
	config PanelGeneratorConfig
	rng    *rand.Rand
}

// NewPanelDataGenerator creates a generator; equal configs yield equal panels.
func NewPanelDataGenerator(config PanelGeneratorConfig) *PanelDataGenerator {
	return &PanelDataGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// TrueModel returns the generating intercept and input coefficients of the
// output at position k.
func TrueModel(k, nInputs int) (float64, []float64) {
	coefs := make([]float64, nInputs)
	for j := range coefs {
		// Alternate signs and vary magnitudes so no two outputs share a model.
		coefs[j] = float64((j+k)%3+1) * 0.5
		if (j+k)%2 == 1 {
			coefs[j] = -coefs[j]
		}
	}
	return float64(k + 1), coefs
}

// Generate builds the table in (country, period, run) order and reports
// every injected gross error.
func (g *PanelDataGenerator) Generate() (*panel.Table, []Injected, error) {
	schema := g.config.Schema
	if err := schema.Validate(); err != nil {
		return nil, nil, fmt.Errorf("generator schema: %w", err)
	}
	if g.config.RowsPerGroup < 0 {
		return nil, nil, fmt.Errorf("rows per group must not be negative")
	}

	table := &panel.Table{Schema: schema}
	var injected []Injected
	for _, country := range g.config.Countries {
		for _, period := range g.config.Periods {
			for r := 0; r < g.config.RowsPerGroup; r++ {
				obs := g.observation(country, period)
				if g.config.OutlierRate > 0 && g.rng.Float64() < g.config.OutlierRate {
					k := g.rng.Intn(len(schema.Outputs))
					obs.Outputs[k] += g.config.OutlierShift
					injected = append(injected, Injected{Row: len(table.Rows), Output: schema.Outputs[k]})
				}
				table.Rows = append(table.Rows, obs)
			}
		}
	}
	return table, injected, nil
}

func (g *PanelDataGenerator) observation(country string, period int) panel.Observation {
	schema := g.config.Schema
	obs := panel.Observation{
		Country: country,
		Period:  period,
		Inputs:  make([]float64, len(schema.Inputs)),
		Outputs: make([]float64, len(schema.Outputs)),
	}
	for j := range obs.Inputs {
		// Policy levers drawn from 0 to 10 times their position, so columns differ in scale.
		obs.Inputs[j] = g.rng.Float64() * 10 * float64(j+1)
	}
	for k := range obs.Outputs {
		intercept, coefs := TrueModel(k, len(schema.Inputs))
		y := intercept + g.rng.NormFloat64()*g.config.NoiseStdDev
		for j, c := range coefs {
			y += c * obs.Inputs[j]
		}
		obs.Outputs[k] = y
	}
	return obs
}
