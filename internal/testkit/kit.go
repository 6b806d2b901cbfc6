package testkit

import (
	"context"
	"sync"

	"panelfit/domain/core"
	"panelfit/domain/panel"
	"panelfit/domain/results"
)

// InMemoryRunStore implements ports.RunStore with in-memory storage
type InMemoryRunStore struct {
	records     map[core.RunID][]results.ResultRecord
	diagnostics map[core.RunID][]results.Diagnostic
	mu          sync.RWMutex
}

func NewInMemoryRunStore() *InMemoryRunStore {
	return &InMemoryRunStore{
		records:     make(map[core.RunID][]results.ResultRecord),
		diagnostics: make(map[core.RunID][]results.Diagnostic),
	}
}

func (s *InMemoryRunStore) WriteResults(ctx context.Context, runID core.RunID, schema panel.Schema, records []results.ResultRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[runID] = append(s.records[runID], records...)
	return nil
}

func (s *InMemoryRunStore) WriteDiagnostics(ctx context.Context, runID core.RunID, diags []results.Diagnostic) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.diagnostics[runID] = append(s.diagnostics[runID], diags...)
	return nil
}

// Records returns a copy of what was written for runID.
func (s *InMemoryRunStore) Records(runID core.RunID) []results.ResultRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]results.ResultRecord(nil), s.records[runID]...)
}

// Diagnostics returns a copy of what was written for runID.
func (s *InMemoryRunStore) Diagnostics(runID core.RunID) []results.Diagnostic {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]results.Diagnostic(nil), s.diagnostics[runID]...)
}

// StaticReader serves a fixed table; implements ports.PanelReader.
type StaticReader struct {
	Table *panel.Table
}

func (r StaticReader) ReadPanel(ctx context.Context) (*panel.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.Table, nil
}
