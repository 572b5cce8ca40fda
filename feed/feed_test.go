package feed

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickhouse/papertrader/signal"
)

func TestTicksParsesStream(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		`{"timestamp":"2024-01-02T15:00:00Z","symbol":"SPY","open":449.5,"high":450.5,"low":449.0,"close":450.0,"volume":1200000}`,
		``,
		`not json at all`,
		`{"timestamp":"2024-01-02T15:05:00Z","symbol":"SPY","close":450.25}`,
	}, "\n")

	ticks := NewTicks(strings.NewReader(input))

	first, ok, err := ticks.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "SPY", first.Symbol)
	assert.Equal(t, 450.0, first.Close)
	assert.Equal(t, time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC), first.Time)

	second, ok, err := ticks.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 450.25, second.Close)

	_, ok, err = ticks.Next()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, ticks.Skipped())
}

func TestSignalsParsesAndNormalizes(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		`{"timestamp":"2024-01-02T15:00:00Z","symbol":"SPY","action":"buy","confidence":0.8,"expected_edge_bp":5.0}`,
		`{"timestamp":"2024-01-02T15:05:00Z","symbol":"SPY","action":"HOLD","confidence":0.9}`,
		`{"timestamp":"2024-01-02T15:10:00Z","symbol":"SPY","action":"SELL","confidence":0.7,"expected_edge_bp":4.0}`,
	}, "\n")

	sigs := NewSignals(strings.NewReader(input))

	first, ok, err := sigs.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, signal.Buy, first.Action)
	assert.Equal(t, 0.8, first.Confidence)
	assert.Equal(t, 5.0, first.ExpectedEdgeBP)

	second, ok, err := sigs.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, signal.Sell, second.Action)

	_, ok, err = sigs.Next()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, sigs.Skipped())
}

func TestTicksEmptyStream(t *testing.T) {
	t.Parallel()

	ticks := NewTicks(strings.NewReader(""))
	_, ok, err := ticks.Next()
	assert.NoError(t, err)
	assert.False(t, ok)
}
