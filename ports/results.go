package ports

import (
	"context"

	"panelfit/domain/core"
	"panelfit/domain/panel"
	"panelfit/domain/results"
)

// ResultWriter persists the sorted result table of one run.
type ResultWriter interface {
	WriteResults(ctx context.Context, runID core.RunID, schema panel.Schema, records []results.ResultRecord) error
}

// DiagnosticsSink receives every skipped (group, output variable) unit of a run.
type DiagnosticsSink interface {
	WriteDiagnostics(ctx context.Context, runID core.RunID, diags []results.Diagnostic) error
}

// RunStore combines both sinks, as database backends implement them together.
type RunStore interface {
	ResultWriter
	DiagnosticsSink
}
