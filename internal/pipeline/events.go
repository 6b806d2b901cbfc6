package pipeline

import (
	"panelfit/domain/core"
	"panelfit/domain/panel"
	"panelfit/internal"
)

// EventKind marks a unit boundary inside the pipeline.
type EventKind string

const (
	EventGroupStarted    EventKind = "group_started"
	EventScreenCompleted EventKind = "screen_completed"
	EventFitCompleted    EventKind = "fit_completed"
	EventPruneCompleted  EventKind = "prune_completed"
	EventUnitSkipped     EventKind = "unit_skipped"
	EventGroupCompleted  EventKind = "group_completed"
)

// Event describes progress of one group. Fields not relevant to the kind are zero.
type Event struct {
	Kind       EventKind
	Group      panel.GroupKey
	Output     string
	Stage      string
	RowsBefore int
	RowsAfter  int
	Removed    int
	RSquared   float64
	Err        error

	// Influential counts flagged rows per output variable on prune events.
	Influential map[string]int
}

// Observer receives pipeline events. Groups run concurrently, so
// implementations must be safe for concurrent use.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

type nopObserver struct{}

func (nopObserver) OnEvent(Event) {}

// LogObserver writes events to a leveled logger.
type LogObserver struct {
	Logger *internal.Logger
}

// NewLogObserver creates an observer backed by logger.
func NewLogObserver(logger *internal.Logger) *LogObserver {
	return &LogObserver{Logger: logger}
}

func (o *LogObserver) OnEvent(e Event) {
	switch e.Kind {
	case EventGroupStarted:
		o.Logger.Debug("[Pipeline] %s: started with %d rows", e.Group, e.RowsBefore)
	case EventScreenCompleted:
		o.Logger.Debug("[Pipeline] %s: removed %d extreme outliers from %d rows", e.Group, e.Removed, e.RowsBefore)
	case EventFitCompleted:
		o.Logger.Trace("[Pipeline] %s: %s fit %s on %d rows (R²=%.4f)", e.Group, e.Stage, e.Output, e.RowsAfter, e.RSquared)
	case EventPruneCompleted:
		o.Logger.Debug("[Pipeline] %s: removed %d influential points %v (cutoff over %d rows)", e.Group, e.Removed, e.Influential, e.RowsBefore)
	case EventUnitSkipped:
		if !core.IsUnitError(e.Err) {
			o.Logger.Error("[Pipeline] %s: unexpected failure for %s at %s: %v", e.Group, e.Output, e.Stage, e.Err)
			return
		}
		o.Logger.Warn("[Pipeline] %s: skipped %s at %s: %v", e.Group, e.Output, e.Stage, e.Err)
	case EventGroupCompleted:
		o.Logger.Debug("[Pipeline] %s: done, %d rows in final fits", e.Group, e.RowsAfter)
	}
}
