package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"panelfit/domain/panel"
	"panelfit/domain/results"
	"panelfit/internal/influence"
)

// GroupInfluence keeps the Cook's distances computed for one group.
type GroupInfluence struct {
	Group   panel.GroupKey
	Cutoff  float64
	Outputs []influence.OutputInfluence
}

// Output is the sorted product of one run.
type Output struct {
	Records     []results.ResultRecord
	Diagnostics []results.Diagnostic
	Influence   []GroupInfluence
	Summary     results.Summary
}

// Runner executes the per-group pipeline over a whole table.
type Runner struct {
	cfg      Config
	observer Observer
}

// Option configures a Runner.
type Option func(*Runner)

// WithObserver routes pipeline events to o.
func WithObserver(o Observer) Option {
	return func(r *Runner) {
		if o != nil {
			r.observer = o
		}
	}
}

// NewRunner validates cfg and returns a runner holding its own copy of it.
func NewRunner(cfg Config, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	r := &Runner{cfg: cfg.clone(), observer: nopObserver{}}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Config returns a copy of the runner's configuration.
func (r *Runner) Config() Config {
	return r.cfg.clone()
}

// Run partitions the table and processes every group, at most Workers at a
// time. Unit failures become diagnostics; only cancellation of ctx aborts.
func (r *Runner) Run(ctx context.Context, table *panel.Table) (*Output, error) {
	groups := Partition(table)
	keys := SortedKeys(groups)

	// One slot per group, so workers never share memory.
	outcomes := make([]groupOutcome, len(keys))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(r.cfg.Workers)
	for i, key := range keys {
		g := groups[key]
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			outcomes[i] = r.processGroup(g)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("pipeline cancelled: %w", err)
	}

	return aggregate(outcomes), nil
}
