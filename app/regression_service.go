package app

import (
	"context"
	"fmt"
	"time"

	"panelfit/domain/core"
	"panelfit/domain/results"
	"panelfit/internal"
	"panelfit/internal/pipeline"
	"panelfit/internal/report"
	"panelfit/ports"
)

// RunRecorder is implemented by stores that keep a per-run summary row.
type RunRecorder interface {
	RecordRun(ctx context.Context, runID core.RunID, fingerprint string, summary results.Summary) error
}

// RegressionService reads the panel, runs the pipeline and hands the
// sorted output to every configured store.
type RegressionService struct {
	reader        ports.PanelReader
	runner        *pipeline.Runner
	stores        []ports.RunStore
	logger        *internal.Logger
	clampRSquared bool
}

// RegressionResult contains the complete output of one run
type RegressionResult struct {
	RunID       core.RunID       `json:"run_id"`
	Output      *pipeline.Output `json:"-"`
	Written     []results.ResultRecord
	Fingerprint string `json:"fingerprint"`
	RuntimeMs   int64  `json:"runtime_ms"`
}

// NewRegressionService creates a regression service; a nil logger uses the default logger.
func NewRegressionService(reader ports.PanelReader, runner *pipeline.Runner, logger *internal.Logger, stores ...ports.RunStore) *RegressionService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &RegressionService{reader: reader, runner: runner, stores: stores, logger: logger}
}

// WithClampedRSquared makes written records report negative R² as 0.
func (s *RegressionService) WithClampedRSquared(clamp bool) *RegressionService {
	s.clampRSquared = clamp
	return s
}

// Run executes one complete regression run.
func (s *RegressionService) Run(ctx context.Context) (*RegressionResult, error) {
	startTime := time.Now()
	runID := core.NewRunID()
	schema := s.runner.Config().Schema

	table, err := s.reader.ReadPanel(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("[RegressionService] run %s: %d rows loaded", runID, table.Len())

	out, err := s.runner.Run(ctx, table)
	if err != nil {
		return nil, err
	}

	written := out.Records
	if s.clampRSquared {
		written = report.ClampRSquared(out.Records)
	}
	fingerprint := report.FormatFingerprint(report.Fingerprint(schema, written))

	for _, store := range s.stores {
		if err := store.WriteResults(ctx, runID, schema, written); err != nil {
			return nil, fmt.Errorf("failed to write results: %w", err)
		}
		if err := store.WriteDiagnostics(ctx, runID, out.Diagnostics); err != nil {
			return nil, fmt.Errorf("failed to write diagnostics: %w", err)
		}
		if rec, ok := store.(RunRecorder); ok {
			if err := rec.RecordRun(ctx, runID, fingerprint, out.Summary); err != nil {
				return nil, fmt.Errorf("failed to record run: %w", err)
			}
		}
	}

	result := &RegressionResult{
		RunID:       runID,
		Output:      out,
		Written:     written,
		Fingerprint: fingerprint,
		RuntimeMs:   time.Since(startTime).Milliseconds(),
	}
	s.logSummary(result)
	return result, nil
}

func (s *RegressionService) logSummary(r *RegressionResult) {
	sum := r.Output.Summary
	s.logger.Info("[RegressionService] run %s: %d groups, %d units emitted, %d skipped, fingerprint %s (%dms)",
		r.RunID, sum.Groups, sum.UnitsEmitted, sum.UnitsSkipped, r.Fingerprint, r.RuntimeMs)
	s.logger.Info("[RegressionService] rows: %d in, %d range-filtered, %d screened, %d pruned",
		sum.RowsIn, sum.RowsRangeFilter, sum.RowsScreened, sum.RowsPruned)
	for kind, n := range sum.SkippedByKind {
		s.logger.Warn("[RegressionService] %d units skipped with %s", n, kind)
	}
}
