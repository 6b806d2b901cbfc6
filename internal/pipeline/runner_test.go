package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"panelfit/domain/core"
	"panelfit/domain/panel"
	"panelfit/domain/results"
	"panelfit/internal/regression"
	"panelfit/internal/screening"
	"panelfit/internal/testkit"
)

func generate(t *testing.T, mutate func(*testkit.PanelGeneratorConfig)) (*panel.Table, []testkit.Injected) {
	t.Helper()
	config := testkit.DefaultPanelConfig()
	if mutate != nil {
		mutate(&config)
	}
	table, injected, err := testkit.NewPanelDataGenerator(config).Generate()
	require.NoError(t, err)
	return table, injected
}

func newRunner(t *testing.T, mutate func(*Config), opts ...Option) *Runner {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	r, err := NewRunner(cfg, opts...)
	require.NoError(t, err)
	return r
}

func TestPartition_CoversEveryRowOnce(t *testing.T) {
	table, _ := generate(t, nil)
	groups := Partition(table)
	assert.Len(t, groups, 6)

	total := 0
	for key, g := range groups {
		assert.Equal(t, key, g.Key)
		for _, row := range g.Rows {
			assert.Equal(t, key, panel.GroupKey{Country: row.Country, Period: row.Period})
		}
		total += g.Len()
	}
	assert.Equal(t, table.Len(), total)

	keys := SortedKeys(groups)
	assert.Equal(t, panel.GroupKey{Country: "Atlantis", Period: 1}, keys[0])
	assert.Equal(t, panel.GroupKey{Country: "Carpania", Period: 2}, keys[len(keys)-1])
}

func TestPartition_EmptyTable(t *testing.T) {
	assert.Empty(t, Partition(&panel.Table{Schema: panel.DefaultSchema()}))
	assert.Empty(t, Partition(nil))
}

func TestRunner_EmitsSortedRecords(t *testing.T) {
	table, _ := generate(t, nil)
	out, err := newRunner(t, nil).Run(context.Background(), table)
	require.NoError(t, err)

	assert.Empty(t, out.Diagnostics)
	assert.Len(t, out.Records, 6*5)
	assert.Equal(t, 6, out.Summary.Groups)
	assert.Equal(t, 30, out.Summary.UnitsEmitted)
	assert.Equal(t, 0, out.Summary.UnitsSkipped)

	for i := 1; i < len(out.Records); i++ {
		a, b := out.Records[i-1], out.Records[i]
		less := a.Country < b.Country ||
			(a.Country == b.Country && a.Period < b.Period) ||
			(a.Country == b.Country && a.Period == b.Period && a.OutputVariable < b.OutputVariable)
		assert.True(t, less, "records %d and %d out of order", i-1, i)
	}
}

func TestRunner_FinalFitsShareThePrunedRows(t *testing.T) {
	table, _ := generate(t, nil)
	out, err := newRunner(t, nil).Run(context.Background(), table)
	require.NoError(t, err)

	rows := make(map[panel.GroupKey]int)
	for _, rec := range out.Records {
		if n, ok := rows[rec.Key()]; ok {
			assert.Equal(t, n, rec.NRows, "%s/%s", rec.Key(), rec.OutputVariable)
		}
		rows[rec.Key()] = rec.NRows
		assert.LessOrEqual(t, rec.NRows, 40)
	}
	assert.Len(t, out.Influence, 6)
	assert.Equal(t, table.Len()-out.Summary.RowsScreened-out.Summary.RowsPruned, sumValues(rows))
}

func sumValues(m map[panel.GroupKey]int) int {
	total := 0
	for _, v := range m {
		total += v
	}
	return total
}

func TestRunner_RecoversTrueCoefficients(t *testing.T) {
	table, _ := generate(t, func(c *testkit.PanelGeneratorConfig) { c.NoiseStdDev = 0.01 })
	out, err := newRunner(t, nil).Run(context.Background(), table)
	require.NoError(t, err)

	schema := panel.DefaultSchema()
	for _, rec := range out.Records {
		_, k, ok := schema.Lookup(rec.OutputVariable)
		require.True(t, ok)
		intercept, coefs := testkit.TrueModel(k, len(schema.Inputs))
		assert.InDelta(t, intercept, rec.Intercept, 0.05)
		for j, c := range coefs {
			assert.InDelta(t, c, rec.Coefficients[j], 0.01)
			// Every lever is strongly significant, so its p-value underflows to 0.
			assert.Equal(t, 0.0, rec.PValues[j])
		}
		assert.Equal(t, 0.0, rec.FPValue)
		assert.InDelta(t, 1.0, rec.RSquared, 1e-4)
	}
}

func TestRunner_Deterministic(t *testing.T) {
	table, _ := generate(t, func(c *testkit.PanelGeneratorConfig) { c.OutlierRate = 0.05 })

	serial, err := newRunner(t, func(c *Config) { c.Workers = 1 }).Run(context.Background(), table)
	require.NoError(t, err)
	parallel, err := newRunner(t, func(c *Config) { c.Workers = 8 }).Run(context.Background(), table)
	require.NoError(t, err)

	require.Equal(t, len(serial.Records), len(parallel.Records))
	for i := range serial.Records {
		assert.Equal(t, serial.Records[i].Row(), parallel.Records[i].Row())
	}
	assert.Equal(t, serial.Diagnostics, parallel.Diagnostics)
	assert.Equal(t, serial.Summary, parallel.Summary)
}

func TestRunner_ScreensInjectedGrossErrors(t *testing.T) {
	table, injected := generate(t, func(c *testkit.PanelGeneratorConfig) { c.OutlierRate = 0.1 })
	require.NotEmpty(t, injected)

	out, err := newRunner(t, nil).Run(context.Background(), table)
	require.NoError(t, err)
	assert.Equal(t, len(injected), out.Summary.RowsScreened)
	assert.Len(t, out.Records, 30)
}

func TestRunner_InsufficientData(t *testing.T) {
	table, _ := generate(t, func(c *testkit.PanelGeneratorConfig) {
		c.Countries = []string{"Zembla"}
		c.Periods = []int{7}
		c.RowsPerGroup = 6 // six parameters: intercept plus five inputs
	})

	out, err := newRunner(t, nil).Run(context.Background(), table)
	require.NoError(t, err)

	assert.Empty(t, out.Records)
	require.Len(t, out.Diagnostics, 5)
	for _, d := range out.Diagnostics {
		assert.Equal(t, core.KindRankDeficiency, d.Kind)
		assert.Equal(t, results.StageInitial, d.Stage)
		assert.Equal(t, "Zembla", d.Country)
		assert.Equal(t, 7, d.Period)
		assert.Equal(t, 6, d.RowsBefore)
	}
	assert.Equal(t, 5, out.Summary.SkippedByKind[core.KindRankDeficiency])
}

func TestRunner_MissingVariable(t *testing.T) {
	table, _ := generate(t, nil)
	r := newRunner(t, func(c *Config) {
		c.Schema.Inputs = append(c.Schema.Inputs, "Money Supply")
	})

	out, err := r.Run(context.Background(), table)
	require.NoError(t, err)
	assert.Empty(t, out.Records)
	assert.Len(t, out.Diagnostics, 30)
	for _, d := range out.Diagnostics {
		assert.Equal(t, core.KindMissingData, d.Kind)
	}
}

func TestRunner_RangeFilterEmptiesGroup(t *testing.T) {
	table, _ := generate(t, nil)
	hi := -1e9
	r := newRunner(t, func(c *Config) {
		c.Ranges = append(c.Ranges, screening.RangeRule{Variable: screening.AllVariables, Max: &hi})
	})

	out, err := r.Run(context.Background(), table)
	require.NoError(t, err)
	assert.Empty(t, out.Records)
	assert.Len(t, out.Diagnostics, 30)
	for _, d := range out.Diagnostics {
		assert.Equal(t, core.KindEmptyGroup, d.Kind)
		assert.Equal(t, results.StageRange, d.Stage)
		assert.Equal(t, 40, d.RowsBefore)
		assert.Equal(t, 0, d.RowsAfter)
		assert.Contains(t, d.Message, "all 40 rows removed by range filter")
	}
	assert.Equal(t, table.Len(), out.Summary.RowsRangeFilter)
	assert.Zero(t, out.Summary.RowsScreened)
}

func TestRunner_RangeFilterOnOneVariable(t *testing.T) {
	table, _ := generate(t, nil)
	lo, hi := 1e9, 2e9
	r := newRunner(t, func(c *Config) {
		c.Ranges = append(c.Ranges, screening.RangeRule{Variable: "Inflation", Min: &lo, Max: &hi})
	})

	out, err := r.Run(context.Background(), table)
	require.NoError(t, err)
	assert.Empty(t, out.Records)
	for _, d := range out.Diagnostics {
		assert.Equal(t, results.StageRange, d.Stage)
	}
}

func TestRunner_WithoutPruning(t *testing.T) {
	table, _ := generate(t, nil)
	out, err := newRunner(t, func(c *Config) { c.PruneInfluence = false }).Run(context.Background(), table)
	require.NoError(t, err)

	assert.Empty(t, out.Influence)
	assert.Equal(t, 0, out.Summary.RowsPruned)
	for _, rec := range out.Records {
		assert.Equal(t, 40, rec.NRows)
	}
}

func TestRunner_ObserverSeesEveryGroup(t *testing.T) {
	table, _ := generate(t, nil)

	var mu sync.Mutex
	counts := make(map[EventKind]int)
	observer := ObserverFunc(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		counts[e.Kind]++
	})

	_, err := newRunner(t, nil, WithObserver(observer)).Run(context.Background(), table)
	require.NoError(t, err)

	assert.Equal(t, 6, counts[EventGroupStarted])
	assert.Equal(t, 6, counts[EventScreenCompleted])
	assert.Equal(t, 6, counts[EventPruneCompleted])
	assert.Equal(t, 60, counts[EventFitCompleted])
	assert.Equal(t, 6, counts[EventGroupCompleted])
	assert.Zero(t, counts[EventUnitSkipped])
}

func TestRunner_CancelledContext(t *testing.T) {
	table, _ := generate(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newRunner(t, nil).Run(ctx, table)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunner_EmptyTable(t *testing.T) {
	out, err := newRunner(t, nil).Run(context.Background(), &panel.Table{Schema: panel.DefaultSchema()})
	require.NoError(t, err)
	assert.Empty(t, out.Records)
	assert.Empty(t, out.Diagnostics)
	assert.Equal(t, 0, out.Summary.Groups)
}

func TestNewRunner_CopiesConfig(t *testing.T) {
	cfg := DefaultConfig()
	r, err := NewRunner(cfg)
	require.NoError(t, err)

	cfg.Schema.Outputs[0] = "changed"
	assert.Equal(t, panel.DefaultOutputs[0], r.Config().Schema.Outputs[0])
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.CooksNumerator = 0
	assert.Error(t, cfg.Validate())

	cfg.PruneInfluence = false
	assert.NoError(t, cfg.Validate())
}

func TestNewRecord_FollowsSchemaOrder(t *testing.T) {
	schema := panel.Schema{Inputs: []string{"b", "a"}, Outputs: []string{"y"}}
	m := &regression.Model{
		Output:       "y",
		Terms:        []string{regression.ConstTerm, "a", "b"},
		Coefficients: []float64{1.5, 2, 3},
		PValues:      []float64{0.9, 0.0001, 0.00011},
		RSquared:     0.75,
		FPValue:      1e-9,
		NObs:         12,
	}

	rec := newRecord(panel.GroupKey{Country: "Atlantis", Period: 2}, schema, m)
	assert.Equal(t, 1.5, rec.Intercept)
	assert.Equal(t, []float64{3, 2}, rec.Coefficients)
	assert.Equal(t, []float64{0.00011, 0}, rec.PValues)
	assert.Equal(t, 0.0, rec.FPValue)
	assert.Equal(t, 12, rec.NRows)
	assert.Equal(t, "y", rec.OutputVariable)
}
