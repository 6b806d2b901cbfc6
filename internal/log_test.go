package internal

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	level, err := ParseLogLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, LogLevelDebug, level)

	level, err = ParseLogLevel(" TRACE ")
	require.NoError(t, err)
	assert.Equal(t, LogLevelTrace, level)

	_, err = ParseLogLevel("verbose")
	assert.Error(t, err)
}

func TestLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(LogLevelWarn, log.New(&buf, "", 0))

	logger.Error("e %d", 1)
	logger.Warn("w %d", 2)
	logger.Info("i %d", 3)
	logger.Debug("d %d", 4)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{"[ERROR] e 1", "[WARN] w 2"}, lines)
	assert.Equal(t, LogLevelWarn, logger.GetLevel())
	assert.Equal(t, "WARN", LogLevelWarn.String())
}
