package pipeline

import (
	"fmt"

	"panelfit/domain/core"
	"panelfit/domain/panel"
	"panelfit/domain/results"
	"panelfit/internal/influence"
	"panelfit/internal/regression"
	"panelfit/internal/screening"
)

// groupOutcome is everything one group contributes to the run.
type groupOutcome struct {
	records     []results.ResultRecord
	diagnostics []results.Diagnostic
	influence   *GroupInfluence

	rowsIn        int
	rangeRemoved  int
	screenRemoved int
	pruneRemoved  int
}

// processGroup runs range filter, screen, initial fits, joint pruning and
// final fits for one group. Every failure is confined to the output
// variables it affects; the group never aborts the run.
func (r *Runner) processGroup(g panel.Group) groupOutcome {
	out := groupOutcome{rowsIn: g.Len()}
	schema := r.cfg.Schema
	r.observer.OnEvent(Event{Kind: EventGroupStarted, Group: g.Key, RowsBefore: g.Len()})

	filtered, removed, err := screening.ApplyRanges(g, r.cfg.Ranges)
	if err != nil {
		out.skip(r, g.Key, schema.Outputs, results.StageRange, g.Len(), g.Len(), err)
		return out
	}
	out.rangeRemoved = removed
	if filtered.Len() == 0 {
		err := fmt.Errorf("%w: all %d rows removed by range filter", core.ErrEmptyGroup, g.Len())
		out.skip(r, g.Key, schema.Outputs, results.StageRange, g.Len(), 0, err)
		return out
	}

	screened, err := screening.Screen(filtered, r.cfg.ScreenVariables, r.cfg.Screen)
	if err != nil {
		out.skip(r, g.Key, schema.Outputs, results.StageScreen, filtered.Len(), filtered.Len(), err)
		return out
	}
	out.screenRemoved = screened.Removed
	r.observer.OnEvent(Event{
		Kind:       EventScreenCompleted,
		Group:      g.Key,
		Stage:      string(results.StageScreen),
		RowsBefore: filtered.Len(),
		RowsAfter:  screened.Group.Len(),
		Removed:    screened.Removed,
	})

	working := screened.Group
	if working.Len() == 0 {
		err := fmt.Errorf("%w: all %d rows removed by screening", core.ErrEmptyGroup, filtered.Len())
		out.skip(r, g.Key, schema.Outputs, results.StageScreen, filtered.Len(), 0, err)
		return out
	}

	fits := make([]*regression.Model, 0, len(schema.Outputs))
	for _, output := range schema.Outputs {
		m, err := regression.Fit(working, schema.Inputs, output)
		if err != nil {
			out.skip(r, g.Key, []string{output}, results.StageInitial, working.Len(), working.Len(), err)
			continue
		}
		r.emitFit(g.Key, results.StageInitial, m)
		fits = append(fits, m)
	}
	if len(fits) == 0 {
		r.observer.OnEvent(Event{Kind: EventGroupCompleted, Group: g.Key, RowsAfter: working.Len()})
		return out
	}

	if !r.cfg.PruneInfluence {
		for _, m := range fits {
			out.records = append(out.records, newRecord(g.Key, schema, m))
		}
		r.observer.OnEvent(Event{Kind: EventGroupCompleted, Group: g.Key, RowsAfter: working.Len()})
		return out
	}

	fitted := make([]string, len(fits))
	for i, m := range fits {
		fitted[i] = m.Output
	}

	pruned, err := influence.Prune(working, fits, r.cfg.CooksNumerator)
	if err != nil {
		out.skip(r, g.Key, fitted, results.StagePrune, working.Len(), working.Len(), err)
		return out
	}
	out.pruneRemoved = pruned.Removed
	out.influence = &GroupInfluence{Group: g.Key, Cutoff: pruned.Cutoff, Outputs: pruned.Outputs}
	counts := make(map[string]int, len(pruned.Outputs))
	for _, o := range pruned.Outputs {
		counts[o.Output] = len(o.Influential)
	}
	r.observer.OnEvent(Event{
		Kind:        EventPruneCompleted,
		Group:       g.Key,
		Stage:       string(results.StagePrune),
		RowsBefore:  working.Len(),
		RowsAfter:   pruned.Group.Len(),
		Removed:     pruned.Removed,
		Influential: counts,
	})
	if pruned.Group.Len() == 0 {
		err := fmt.Errorf("%w: all %d rows removed as influential", core.ErrEmptyGroup, working.Len())
		out.skip(r, g.Key, fitted, results.StagePrune, working.Len(), 0, err)
		return out
	}

	final := pruned.Group
	for _, output := range fitted {
		m, err := regression.Fit(final, schema.Inputs, output)
		if err != nil {
			out.skip(r, g.Key, []string{output}, results.StageFinal, working.Len(), final.Len(), err)
			continue
		}
		r.emitFit(g.Key, results.StageFinal, m)
		out.records = append(out.records, newRecord(g.Key, schema, m))
	}

	r.observer.OnEvent(Event{Kind: EventGroupCompleted, Group: g.Key, RowsAfter: final.Len()})
	return out
}

func (o *groupOutcome) skip(r *Runner, key panel.GroupKey, outputs []string, stage results.Stage, before, after int, err error) {
	for _, output := range outputs {
		o.diagnostics = append(o.diagnostics, results.Diagnostic{
			Country:        key.Country,
			Period:         key.Period,
			OutputVariable: output,
			Kind:           core.KindOf(err),
			Stage:          stage,
			RowsBefore:     before,
			RowsAfter:      after,
			Message:        err.Error(),
		})
		r.observer.OnEvent(Event{
			Kind:       EventUnitSkipped,
			Group:      key,
			Output:     output,
			Stage:      string(stage),
			RowsBefore: before,
			RowsAfter:  after,
			Err:        err,
		})
	}
}

func (r *Runner) emitFit(key panel.GroupKey, stage results.Stage, m *regression.Model) {
	r.observer.OnEvent(Event{
		Kind:       EventFitCompleted,
		Group:      key,
		Output:     m.Output,
		Stage:      string(stage),
		RowsBefore: m.NObs,
		RowsAfter:  m.NObs,
		RSquared:   m.RSquared,
	})
}

// newRecord reports a fit. Coefficients and p-values follow the schema
// input order.
func newRecord(key panel.GroupKey, schema panel.Schema, m *regression.Model) results.ResultRecord {
	res := m.Result()
	rec := results.ResultRecord{
		Country:        key.Country,
		Period:         key.Period,
		OutputVariable: res.Output,
		NRows:          res.NRows,
		RSquared:       res.RSquared,
		FPValue:        res.FPValue,
		Intercept:      res.Coefficients[regression.ConstTerm],
		Coefficients:   make([]float64, len(schema.Inputs)),
		PValues:        make([]float64, len(schema.Inputs)),
	}
	for j, in := range schema.Inputs {
		rec.Coefficients[j] = res.Coefficients[in]
		rec.PValues[j] = res.PValues[in]
	}
	return rec
}
