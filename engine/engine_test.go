package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tickhouse/papertrader/account"
	"github.com/tickhouse/papertrader/journal"
	"github.com/tickhouse/papertrader/market"
	"github.com/tickhouse/papertrader/signal"
	"github.com/tickhouse/papertrader/sim"
)

// captureJournal records everything the engine journals so tests can
// assert on the event stream directly.
type captureJournal struct {
	trades []journal.TradeRecord
	events []journal.EventRecord
}

func (j *captureJournal) RecordTrade(r journal.TradeRecord) error {
	j.trades = append(j.trades, r)
	return nil
}

func (j *captureJournal) RecordEvent(r journal.EventRecord) error {
	j.events = append(j.events, r)
	return nil
}

func (j *captureJournal) Close() error { return nil }

func (j *captureJournal) eventTypes() []string {
	types := make([]string, 0, len(j.events))
	for _, ev := range j.events {
		types = append(types, ev.Type)
	}
	return types
}

var sessionStart = time.Date(2024, time.January, 2, 15, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, opts sim.Options, cfg Config, cooldown time.Duration) (*Engine, *captureJournal) {
	t.Helper()

	if opts.Seed == 0 {
		opts.Seed = 42
	}
	if opts.InitialCash == 0 {
		opts.InitialCash = 100_000
	}
	if opts.FillDelay == 0 {
		opts.FillDelay = time.Millisecond
	}

	jour := &captureJournal{}
	e := New(zap.NewNop(), sim.New(opts),
		market.NewGuard(15*time.Minute, market.Hours{}, true),
		signal.NewPipeline(0.60, 3.0, signal.NewCooldown(cooldown)),
		account.NewState(opts.InitialCash), jour, cfg)
	e.now = func() time.Time { return sessionStart.Add(time.Minute) }
	return e, jour
}

func spyTick(at time.Time, close float64) market.Tick {
	return market.Tick{Symbol: "SPY", Time: at, Close: close}
}

func spySignal(at time.Time, action signal.Action) signal.Signal {
	return signal.Signal{Time: at, Symbol: "SPY", Action: action, Confidence: 0.80, ExpectedEdgeBP: 5.0}
}

func TestBuySignalOpensLong(t *testing.T) {
	t.Parallel()

	e, jour := newTestEngine(t, sim.Options{MaxSlippageBP: 2.0}, Config{RiskPercent: 1.0}, 5*time.Minute)

	err := e.ProcessTick(context.Background(),
		spyTick(sessionStart, 450.00),
		[]signal.Signal{spySignal(sessionStart, signal.Buy)})
	require.NoError(t, err)

	snap := e.Snapshot()
	pos, ok := snap.Positions["SPY"]
	require.True(t, ok, "expected an open SPY position")
	// floor(1% x 100,000 / 450) = 2 shares
	assert.EqualValues(t, 2, pos.Quantity)
	// entry within [450.00, 450.09]: base price plus at most 2bp adverse
	assert.GreaterOrEqual(t, pos.AvgPrice, 450.00)
	assert.LessOrEqual(t, pos.AvgPrice, 450.09)
	assert.InDelta(t, 100_000-2*pos.AvgPrice, snap.Cash, 1e-9)

	require.Len(t, jour.trades, 1)
	tr := jour.trades[0]
	assert.Equal(t, "FILLED", tr.Status)
	assert.Equal(t, "BUY", tr.Side)
	assert.EqualValues(t, 2, tr.Quantity)
	assert.NotEmpty(t, tr.OrderID)
	assert.Equal(t, []string{"TICK", "TRADE"}, jour.eventTypes())
}

func TestRepeatedBuyWhileLongIsFiltered(t *testing.T) {
	t.Parallel()

	e, jour := newTestEngine(t, sim.Options{}, Config{}, 0)

	require.NoError(t, e.ProcessTick(context.Background(),
		spyTick(sessionStart, 450.00),
		[]signal.Signal{spySignal(sessionStart, signal.Buy)}))
	require.Len(t, jour.trades, 1)

	next := sessionStart.Add(30 * time.Second)
	require.NoError(t, e.ProcessTick(context.Background(),
		spyTick(next, 450.50),
		[]signal.Signal{spySignal(next, signal.Buy)}))

	assert.Len(t, jour.trades, 1, "BUY while LONG must not reach the broker")
	assert.EqualValues(t, 2, e.Snapshot().Positions["SPY"].Quantity)
}

func TestCooldownBlocksImmediateExit(t *testing.T) {
	t.Parallel()

	e, jour := newTestEngine(t, sim.Options{}, Config{}, 5*time.Minute)

	require.NoError(t, e.ProcessTick(context.Background(),
		spyTick(sessionStart, 450.00),
		[]signal.Signal{spySignal(sessionStart, signal.Buy)}))
	require.Len(t, jour.trades, 1)

	next := sessionStart.Add(30 * time.Second)
	require.NoError(t, e.ProcessTick(context.Background(),
		spyTick(next, 451.00),
		[]signal.Signal{spySignal(next, signal.Sell)}))

	assert.Len(t, jour.trades, 1, "SELL inside the cooldown window must be filtered")
	assert.EqualValues(t, 2, e.Snapshot().Positions["SPY"].Quantity)
}

func TestAlternatingSignalsDoNotChurn(t *testing.T) {
	t.Parallel()

	e, jour := newTestEngine(t, sim.Options{}, Config{}, 5*time.Minute)

	// A burst of conflicting signals on one tick: only the first can
	// trade. The rest fall to cooldown or position-state.
	sigs := []signal.Signal{
		spySignal(sessionStart, signal.Buy),
		spySignal(sessionStart, signal.Sell),
		spySignal(sessionStart, signal.Buy),
		spySignal(sessionStart, signal.Sell),
	}
	require.NoError(t, e.ProcessTick(context.Background(), spyTick(sessionStart, 450.00), sigs))

	assert.Len(t, jour.trades, 1)
	snap := e.Snapshot()
	assert.Equal(t, 1, snap.TradesCount)
	assert.EqualValues(t, 2, snap.Positions["SPY"].Quantity)
}

func TestStaleTickSkipsCycle(t *testing.T) {
	t.Parallel()

	e, jour := newTestEngine(t, sim.Options{}, Config{}, 0)
	e.now = func() time.Time { return sessionStart.Add(20 * time.Minute) }

	err := e.ProcessTick(context.Background(),
		spyTick(sessionStart, 450.00),
		[]signal.Signal{spySignal(sessionStart, signal.Buy)})
	require.NoError(t, err)

	assert.Empty(t, jour.trades)
	assert.Equal(t, []string{"TICK-SKIPPED"}, jour.eventTypes())

	snap := e.Snapshot()
	assert.Equal(t, 100_000.0, snap.Cash)
	assert.Equal(t, 100_000.0, snap.PortfolioValue)
	assert.Empty(t, snap.Positions)
}

func TestPortfolioValueTracksMark(t *testing.T) {
	t.Parallel()

	e, jour := newTestEngine(t, sim.Options{}, Config{}, 0)

	require.NoError(t, e.ProcessTick(context.Background(),
		spyTick(sessionStart, 450.00),
		[]signal.Signal{spySignal(sessionStart, signal.Buy)}))

	next := sessionStart.Add(time.Minute)
	e.now = func() time.Time { return next }
	require.NoError(t, e.ProcessTick(context.Background(), spyTick(next, 455.00), nil))

	snap := e.Snapshot()
	pos := snap.Positions["SPY"]
	require.EqualValues(t, 2, pos.Quantity)
	assert.InDelta(t, snap.Cash+2*455.00, snap.PortfolioValue, 1e-9)

	last := jour.events[len(jour.events)-1]
	assert.Equal(t, "TICK", last.Type)
	assert.InDelta(t, snap.PortfolioValue, last.PortfolioValue, 1e-9)
}

func TestRejectedOrderLeavesStateUnchanged(t *testing.T) {
	t.Parallel()

	e, jour := newTestEngine(t, sim.Options{RejectProb: 1.0}, Config{}, 0)

	err := e.ProcessTick(context.Background(),
		spyTick(sessionStart, 450.00),
		[]signal.Signal{spySignal(sessionStart, signal.Buy)})
	require.NoError(t, err)

	require.Len(t, jour.trades, 1)
	tr := jour.trades[0]
	assert.Equal(t, "REJECTED", tr.Status)
	assert.NotEmpty(t, tr.RejectionReason)
	assert.Zero(t, tr.FilledPrice)
	assert.Equal(t, []string{"TICK", "TRADE-FAILED"}, jour.eventTypes())

	snap := e.Snapshot()
	assert.Equal(t, 100_000.0, snap.Cash)
	assert.Empty(t, snap.Positions)
	assert.Zero(t, snap.TradesCount)
}

func TestFillTimeoutFailsTradeOnly(t *testing.T) {
	t.Parallel()

	e, jour := newTestEngine(t,
		sim.Options{FillDelay: time.Minute},
		Config{FillTimeout: 20 * time.Millisecond}, 0)

	err := e.ProcessTick(context.Background(),
		spyTick(sessionStart, 450.00),
		[]signal.Signal{spySignal(sessionStart, signal.Buy)})
	require.NoError(t, err)

	require.Len(t, jour.trades, 1)
	assert.Equal(t, "TIMEOUT", jour.trades[0].Status)
	assert.Equal(t, []string{"TICK", "TRADE-FAILED"}, jour.eventTypes())

	snap := e.Snapshot()
	assert.Equal(t, 100_000.0, snap.Cash)
	assert.Empty(t, snap.Positions)
}

func TestSessionCancelAbortsWithoutStateChange(t *testing.T) {
	t.Parallel()

	e, jour := newTestEngine(t, sim.Options{FillDelay: time.Minute}, Config{}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	err := e.ProcessTick(ctx,
		spyTick(sessionStart, 450.00),
		[]signal.Signal{spySignal(sessionStart, signal.Buy)})
	require.ErrorIs(t, err, context.Canceled)

	assert.Empty(t, jour.trades)
	assert.Equal(t, []string{"TICK"}, jour.eventTypes())
	assert.Equal(t, 100_000.0, e.Snapshot().Cash)
}

func TestSellExitRealizesAndFlattens(t *testing.T) {
	t.Parallel()

	e, jour := newTestEngine(t, sim.Options{}, Config{}, 0)

	require.NoError(t, e.ProcessTick(context.Background(),
		spyTick(sessionStart, 450.00),
		[]signal.Signal{spySignal(sessionStart, signal.Buy)}))

	next := sessionStart.Add(time.Minute)
	e.now = func() time.Time { return next }
	require.NoError(t, e.ProcessTick(context.Background(),
		spyTick(next, 455.00),
		[]signal.Signal{spySignal(next, signal.Sell)}))

	require.Len(t, jour.trades, 2)
	exit := jour.trades[1]
	assert.Equal(t, "SELL", exit.Side)
	assert.EqualValues(t, 2, exit.Quantity, "exit closes the full held quantity")

	snap := e.Snapshot()
	assert.Empty(t, snap.Positions)
	assert.Equal(t, 2, snap.TradesCount)
	assert.InDelta(t, snap.Cash, snap.PortfolioValue, 1e-9)
}

func TestStartEmitsInitEvent(t *testing.T) {
	t.Parallel()

	e, jour := newTestEngine(t, sim.Options{}, Config{}, 0)
	e.Start()

	require.Len(t, jour.events, 1)
	ev := jour.events[0]
	assert.Equal(t, "INIT", ev.Type)
	assert.Equal(t, 100_000.0, ev.Cash)
	assert.Equal(t, 100_000.0, ev.PortfolioValue)
	assert.Zero(t, ev.OpenPositions)
}
