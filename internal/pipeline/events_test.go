package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"panelfit/domain/core"
	"panelfit/domain/panel"
	"panelfit/internal"
)

func TestLogObserver_Levels(t *testing.T) {
	var buf bytes.Buffer
	observer := NewLogObserver(internal.NewLoggerTo(internal.LogLevelWarn, log.New(&buf, "", 0)))
	key := panel.GroupKey{Country: "Atlantis", Period: 1}

	observer.OnEvent(Event{Kind: EventGroupStarted, Group: key, RowsBefore: 40})
	assert.Empty(t, buf.String())

	observer.OnEvent(Event{Kind: EventUnitSkipped, Group: key, Output: "Inflation", Stage: "initial_fit",
		Err: core.NewInsufficientDFError(4, 6)})
	assert.Contains(t, buf.String(), "[WARN]")
	assert.Contains(t, buf.String(), "skipped Inflation at initial_fit")

	buf.Reset()
	observer.OnEvent(Event{Kind: EventUnitSkipped, Group: key, Output: "Inflation", Stage: "final_fit",
		Err: errors.New("boom")})
	assert.Contains(t, buf.String(), "[ERROR]")
	assert.Contains(t, buf.String(), "unexpected failure")
}

func TestLogObserver_TracesRun(t *testing.T) {
	var buf bytes.Buffer
	logger := internal.NewLoggerTo(internal.LogLevelTrace, log.New(&buf, "", 0))
	table, _ := generate(t, nil)

	_, err := newRunner(t, nil, WithObserver(NewLogObserver(logger))).Run(context.Background(), table)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Atlantis/1: started with 40 rows")
	assert.Contains(t, out, "final_fit fit Inflation")
	assert.NotContains(t, out, "[WARN]")
}
