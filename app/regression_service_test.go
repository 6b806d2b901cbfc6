package app

import (
	"bytes"
	"context"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"panelfit/domain/core"
	"panelfit/domain/results"
	"panelfit/internal"
	"panelfit/internal/pipeline"
	"panelfit/internal/testkit"
)

type recordingStore struct {
	*testkit.InMemoryRunStore
	fingerprints map[core.RunID]string
}

func (s *recordingStore) RecordRun(ctx context.Context, runID core.RunID, fingerprint string, summary results.Summary) error {
	s.fingerprints[runID] = fingerprint
	return nil
}

func newService(t *testing.T, buf *bytes.Buffer, stores ...*recordingStore) *RegressionService {
	t.Helper()
	table, _, err := testkit.NewPanelDataGenerator(testkit.DefaultPanelConfig()).Generate()
	require.NoError(t, err)
	runner, err := pipeline.NewRunner(pipeline.DefaultConfig())
	require.NoError(t, err)

	logger := internal.NewLoggerTo(internal.LogLevelInfo, log.New(buf, "", 0))
	svc := NewRegressionService(testkit.StaticReader{Table: table}, runner, logger)
	for _, s := range stores {
		svc.stores = append(svc.stores, s)
	}
	return svc
}

func TestRegressionService_Run(t *testing.T) {
	var buf bytes.Buffer
	store := &recordingStore{InMemoryRunStore: testkit.NewInMemoryRunStore(), fingerprints: map[core.RunID]string{}}
	svc := newService(t, &buf, store)

	result, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, store.Records(result.RunID), 30)
	assert.Empty(t, store.Diagnostics(result.RunID))
	assert.Equal(t, result.Fingerprint, store.fingerprints[result.RunID])
	assert.Contains(t, buf.String(), "30 units emitted")
}

func TestRegressionService_FingerprintIsStable(t *testing.T) {
	var buf bytes.Buffer
	a, err := newService(t, &buf).Run(context.Background())
	require.NoError(t, err)
	b, err := newService(t, &buf).Run(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, a.RunID, b.RunID)
	assert.Equal(t, a.Fingerprint, b.Fingerprint)
}

func TestRegressionService_ClampOnlyAffectsWrittenRecords(t *testing.T) {
	var buf bytes.Buffer
	svc := newService(t, &buf).WithClampedRSquared(true)

	result, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Written, len(result.Output.Records))
	for i := range result.Written {
		assert.GreaterOrEqual(t, result.Written[i].RSquared, 0.0)
		if result.Output.Records[i].RSquared >= 0 {
			assert.Equal(t, result.Output.Records[i], result.Written[i])
		}
	}
}
