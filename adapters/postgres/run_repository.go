package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"panelfit/domain/core"
	"panelfit/domain/panel"
	"panelfit/domain/results"
	"panelfit/internal/errors"
)

// Open connects to PostgreSQL and applies pending migrations.
func Open(ctx context.Context, databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if err != nil {
		return nil, errors.DatabaseError("failed to connect to database", err)
	}
	if _, err := NewMigrator(db).Up(ctx); err != nil {
		db.Close()
		return nil, errors.DatabaseError("failed to migrate database", err)
	}
	return db, nil
}

// resultRow is the stored form of a ResultRecord
type resultRow struct {
	RunID          string          `db:"run_id"`
	Country        string          `db:"country"`
	Period         int             `db:"period"`
	OutputVariable string          `db:"output_variable"`
	NRows          int             `db:"n_rows"`
	RSquared       float64         `db:"r_squared"`
	FPValue        float64         `db:"f_p_value"`
	Intercept      float64         `db:"intercept"`
	Inputs         pq.StringArray  `db:"input_variables"`
	Coefficients   pq.Float64Array `db:"coefficients"`
	PValues        pq.Float64Array `db:"p_values"`
}

// diagnosticRow is the stored form of a Diagnostic
type diagnosticRow struct {
	RunID          string `db:"run_id"`
	Country        string `db:"country"`
	Period         int    `db:"period"`
	OutputVariable string `db:"output_variable"`
	FailureKind    string `db:"failure_kind"`
	Stage          string `db:"stage"`
	RowsBefore     int    `db:"rows_before"`
	RowsAfter      int    `db:"rows_after"`
	Message        string `db:"message"`
}

func toResultRow(runID core.RunID, schema panel.Schema, r results.ResultRecord) resultRow {
	return resultRow{
		RunID:          runID.String(),
		Country:        r.Country,
		Period:         r.Period,
		OutputVariable: r.OutputVariable,
		NRows:          r.NRows,
		RSquared:       r.RSquared,
		FPValue:        r.FPValue,
		Intercept:      r.Intercept,
		Inputs:         pq.StringArray(append([]string(nil), schema.Inputs...)),
		Coefficients:   pq.Float64Array(append([]float64(nil), r.Coefficients...)),
		PValues:        pq.Float64Array(append([]float64(nil), r.PValues...)),
	}
}

func (row resultRow) record() results.ResultRecord {
	return results.ResultRecord{
		Country:        row.Country,
		Period:         row.Period,
		OutputVariable: row.OutputVariable,
		NRows:          row.NRows,
		RSquared:       row.RSquared,
		FPValue:        row.FPValue,
		Intercept:      row.Intercept,
		Coefficients:   []float64(row.Coefficients),
		PValues:        []float64(row.PValues),
	}
}

func toDiagnosticRow(runID core.RunID, d results.Diagnostic) diagnosticRow {
	return diagnosticRow{
		RunID:          runID.String(),
		Country:        d.Country,
		Period:         d.Period,
		OutputVariable: d.OutputVariable,
		FailureKind:    string(d.Kind),
		Stage:          string(d.Stage),
		RowsBefore:     d.RowsBefore,
		RowsAfter:      d.RowsAfter,
		Message:        d.Message,
	}
}

func (row diagnosticRow) diagnostic() results.Diagnostic {
	return results.Diagnostic{
		Country:        row.Country,
		Period:         row.Period,
		OutputVariable: row.OutputVariable,
		Kind:           core.FailureKind(row.FailureKind),
		Stage:          results.Stage(row.Stage),
		RowsBefore:     row.RowsBefore,
		RowsAfter:      row.RowsAfter,
		Message:        row.Message,
	}
}

const insertResultSQL = `
	INSERT INTO regression_results (
		run_id, country, period, output_variable, n_rows, r_squared,
		f_p_value, intercept, input_variables, coefficients, p_values
	) VALUES (
		:run_id, :country, :period, :output_variable, :n_rows, :r_squared,
		:f_p_value, :intercept, :input_variables, :coefficients, :p_values
	)`

const insertDiagnosticSQL = `
	INSERT INTO regression_diagnostics (
		run_id, country, period, output_variable, failure_kind, stage,
		rows_before, rows_after, message
	) VALUES (
		:run_id, :country, :period, :output_variable, :failure_kind, :stage,
		:rows_before, :rows_after, :message
	)`

// RunRepository stores regression runs. It implements ports.RunStore.
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

// WriteResults inserts every record of a run in one transaction.
func (r *RunRepository) WriteResults(ctx context.Context, runID core.RunID, schema panel.Schema, records []results.ResultRecord) error {
	if runID.IsEmpty() {
		return errors.InvalidInput("run ID is required")
	}
	rows := make([]resultRow, len(records))
	for i, rec := range records {
		rows[i] = toResultRow(runID, schema, rec)
	}
	if err := r.insertAll(ctx, insertResultSQL, rows); err != nil {
		return errors.DatabaseError("failed to insert regression results", err)
	}
	return nil
}

// WriteDiagnostics inserts every skipped unit of a run in one transaction.
func (r *RunRepository) WriteDiagnostics(ctx context.Context, runID core.RunID, diags []results.Diagnostic) error {
	if runID.IsEmpty() {
		return errors.InvalidInput("run ID is required")
	}
	rows := make([]diagnosticRow, len(diags))
	for i, d := range diags {
		rows[i] = toDiagnosticRow(runID, d)
	}
	if err := r.insertAll(ctx, insertDiagnosticSQL, rows); err != nil {
		return errors.DatabaseError("failed to insert regression diagnostics", err)
	}
	return nil
}

func (r *RunRepository) insertAll(ctx context.Context, query string, rows interface{}) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	switch rs := rows.(type) {
	case []resultRow:
		for _, row := range rs {
			if _, err := stmt.ExecContext(ctx, row); err != nil {
				return err
			}
		}
	case []diagnosticRow:
		for _, row := range rs {
			if _, err := stmt.ExecContext(ctx, row); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported row type %T", rows)
	}
	return tx.Commit()
}

// RecordRun stores the run summary and output fingerprint.
func (r *RunRepository) RecordRun(ctx context.Context, runID core.RunID, fingerprint string, summary results.Summary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO regression_runs (run_id, fingerprint, summary) VALUES ($1, $2, $3)`,
		runID.String(), fingerprint, payload)
	if err != nil {
		return errors.DatabaseError("failed to record run", err)
	}
	return nil
}

// ListResults returns the stored records of a run, sorted.
func (r *RunRepository) ListResults(ctx context.Context, runID core.RunID) ([]results.ResultRecord, error) {
	var rows []resultRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT run_id, country, period, output_variable, n_rows, r_squared,
			   f_p_value, intercept, input_variables, coefficients, p_values
		FROM regression_results
		WHERE run_id = $1
		ORDER BY country, period, output_variable`, runID.String())
	if err != nil {
		return nil, errors.DatabaseError("failed to list regression results", err)
	}
	out := make([]results.ResultRecord, len(rows))
	for i, row := range rows {
		out[i] = row.record()
	}
	// Database collation may differ from byte order.
	results.SortRecords(out)
	return out, nil
}

// ListDiagnostics returns the stored diagnostics of a run, sorted.
func (r *RunRepository) ListDiagnostics(ctx context.Context, runID core.RunID) ([]results.Diagnostic, error) {
	var rows []diagnosticRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT run_id, country, period, output_variable, failure_kind, stage,
			   rows_before, rows_after, message
		FROM regression_diagnostics
		WHERE run_id = $1`, runID.String())
	if err != nil {
		return nil, errors.DatabaseError("failed to list regression diagnostics", err)
	}
	out := make([]results.Diagnostic, len(rows))
	for i, row := range rows {
		out[i] = row.diagnostic()
	}
	results.SortDiagnostics(out)
	return out, nil
}
