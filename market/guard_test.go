package market

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHours(t *testing.T) Hours {
	t.Helper()
	h, err := DefaultHours()
	require.NoError(t, err)
	return h
}

// 2024-01-02 is a Tuesday.
func sessionTime(t *testing.T, hour, min int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return time.Date(2024, 1, 2, hour, min, 0, 0, loc)
}

func TestGuardAdmitsFreshSessionTick(t *testing.T) {
	t.Parallel()

	g := NewGuard(15*time.Minute, testHours(t), false)
	ts := sessionTime(t, 10, 0)

	err := g.Admit(Tick{Symbol: "SPY", Time: ts, Close: 450}, ts.Add(time.Minute))
	assert.NoError(t, err)
}

func TestGuardRejectsStaleTick(t *testing.T) {
	t.Parallel()

	g := NewGuard(15*time.Minute, testHours(t), false)
	ts := sessionTime(t, 10, 0)

	err := g.Admit(Tick{Symbol: "SPY", Time: ts, Close: 450}, ts.Add(20*time.Minute))
	assert.ErrorIs(t, err, ErrStaleTick)
}

func TestGuardRejectsOutsideMarketHours(t *testing.T) {
	t.Parallel()

	g := NewGuard(15*time.Minute, testHours(t), false)

	cases := []struct {
		name string
		ts   time.Time
	}{
		{"pre-market", sessionTime(t, 8, 0)},
		{"after-close", sessionTime(t, 16, 30)},
		{"weekend", sessionTime(t, 10, 0).AddDate(0, 0, 4)}, // Saturday
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := g.Admit(Tick{Symbol: "SPY", Time: tc.ts}, tc.ts.Add(time.Minute))
			assert.ErrorIs(t, err, ErrMarketClosed)
		})
	}
}

func TestGuardAfterHoursBypass(t *testing.T) {
	t.Parallel()

	g := NewGuard(15*time.Minute, testHours(t), true)
	ts := sessionTime(t, 20, 0)

	err := g.Admit(Tick{Symbol: "SPY", Time: ts}, ts.Add(time.Minute))
	assert.NoError(t, err)
}

func TestGuardRejectsOutOfOrderTicks(t *testing.T) {
	t.Parallel()

	g := NewGuard(15*time.Minute, testHours(t), false)
	t0 := sessionTime(t, 10, 0)
	t1 := t0.Add(time.Minute)

	require.NoError(t, g.Admit(Tick{Symbol: "SPY", Time: t1}, t1))

	err := g.Admit(Tick{Symbol: "SPY", Time: t0}, t1)
	assert.ErrorIs(t, err, ErrOutOfOrder)

	// Equal timestamps are rejected too.
	err = g.Admit(Tick{Symbol: "SPY", Time: t1}, t1)
	assert.ErrorIs(t, err, ErrOutOfOrder)

	// Other symbols keep their own ordering.
	assert.NoError(t, g.Admit(Tick{Symbol: "QQQ", Time: t0}, t1))
}

func TestGuardRejectionLeavesOrderingUntouched(t *testing.T) {
	t.Parallel()

	g := NewGuard(15*time.Minute, testHours(t), false)
	t0 := sessionTime(t, 10, 0)

	// A stale rejection must not advance the last-admitted watermark.
	err := g.Admit(Tick{Symbol: "SPY", Time: t0}, t0.Add(time.Hour))
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrOutOfOrder))

	assert.NoError(t, g.Admit(Tick{Symbol: "SPY", Time: t0}, t0.Add(time.Minute)))
}

func TestTickStoreClose(t *testing.T) {
	t.Parallel()

	ts := NewTickStore()
	_, ok := ts.Close("SPY")
	assert.False(t, ok)

	ts.Set(Tick{Symbol: "SPY", Close: 450.25})
	px, ok := ts.Close("SPY")
	assert.True(t, ok)
	assert.Equal(t, 450.25, px)
}
