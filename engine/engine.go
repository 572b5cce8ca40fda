// Package engine implements the live execution loop: it consumes
// admitted market ticks and filtered trade signals, submits orders to a
// broker, reconciles fills, and maintains mark-to-market account state
// with deterministic, journaled transitions.
package engine

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tickhouse/papertrader/account"
	"github.com/tickhouse/papertrader/broker"
	"github.com/tickhouse/papertrader/journal"
	"github.com/tickhouse/papertrader/market"
	"github.com/tickhouse/papertrader/signal"
)

// Config holds the execution parameters supplied by the operator.
type Config struct {
	RiskPercent    float64       // risk per trade as % of portfolio, e.g. 1.0
	MaxPositionPct float64       // cap on a single position as % of portfolio
	FillTimeout    time.Duration // bounded wait for a terminal fill
}

func (c Config) withDefaults() Config {
	if c.RiskPercent == 0 {
		c.RiskPercent = 1.0
	}
	if c.MaxPositionPct == 0 {
		c.MaxPositionPct = 10.0
	}
	if c.FillTimeout == 0 {
		c.FillTimeout = 2500 * time.Millisecond
	}
	return c
}

// Engine owns one account.State and serializes every mutation to it.
// Per-cycle failures (stale data, rejected fills, timeouts) are isolated
// to their cycle and can never leave the ledger partially updated.
type Engine struct {
	mu       sync.Mutex
	log      *zap.Logger
	b        broker.Broker
	guard    *market.Guard
	pipeline *signal.Pipeline
	state    *account.State
	ticks    *market.TickStore
	jour     journal.Journal
	cfg      Config

	now func() time.Time
}

func New(log *zap.Logger, b broker.Broker, guard *market.Guard, pipeline *signal.Pipeline,
	state *account.State, jour journal.Journal, cfg Config) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		log:      log,
		b:        b,
		guard:    guard,
		pipeline: pipeline,
		state:    state,
		ticks:    market.NewTickStore(),
		jour:     jour,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
	}
}

// Start records the session's opening state.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.log.Info("engine started",
		zap.Float64("cash", e.state.Cash),
		zap.Float64("portfolio_value", e.state.PortfolioValue),
		zap.Int("session", e.state.SessionCount),
		zap.Int("lifetime_trades", e.state.LifetimeTrades))
	e.emitEventLocked(journal.EventInit, e.now())
}

// Snapshot captures the current account state for persistence.
func (e *Engine) Snapshot() account.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Snapshot()
}

// ProcessTick runs one engine iteration: admit the tick, mark to
// market, then evaluate any signals due for the tick's symbol. A tick
// the guard rejects skips the entire cycle with a TICK-SKIPPED event
// and no state mutation. The returned error is non-nil only when the
// session context is cancelled.
func (e *Engine) ProcessTick(ctx context.Context, tick market.Tick, sigs []signal.Signal) error {
	if err := e.guard.Admit(tick, e.now()); err != nil {
		e.log.Warn("tick skipped",
			zap.String("symbol", tick.Symbol),
			zap.Time("tick_time", tick.Time),
			zap.Error(err))
		e.emitEvent(journal.EventTickSkipped, tick.Time)
		return nil
	}

	// Equity updates on every admitted price observation, signal or not.
	e.mu.Lock()
	e.ticks.Set(tick)
	e.state.MarkToMarket(e.ticks.Close, tick.Time)
	e.emitEventLocked(journal.EventTick, tick.Time)
	e.mu.Unlock()

	for _, sig := range sigs {
		if sig.Symbol != tick.Symbol {
			continue
		}
		if err := e.processSignal(ctx, sig, tick); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) processSignal(ctx context.Context, sig signal.Signal, tick market.Tick) error {
	now := e.now()

	e.mu.Lock()
	pos := e.state.Position(sig.Symbol)
	res := e.pipeline.Evaluate(sig, pos.State(), now)
	var qty int64
	if res.Accepted {
		qty = e.orderQuantityLocked(sig.Action, tick.Close, pos)
	}
	e.mu.Unlock()

	if !res.Accepted {
		e.log.Debug("signal filtered",
			zap.String("symbol", sig.Symbol),
			zap.String("action", string(sig.Action)),
			zap.String("reason", res.Reason),
			zap.String("detail", res.Detail))
		return nil
	}
	if qty <= 0 {
		e.log.Warn("signal dropped, no executable quantity",
			zap.String("symbol", sig.Symbol),
			zap.String("action", string(sig.Action)),
			zap.Float64("price", tick.Close))
		return nil
	}

	side := broker.Buy
	if sig.Action == signal.Sell {
		side = broker.Sell
	}

	// The broker fills against exactly the price we observed. Never let
	// it re-derive one.
	if ps, ok := e.b.(broker.PriceSetter); ok {
		ps.SetPrice(tick.Symbol, tick.Close)
	}

	ord, err := e.b.SubmitOrder(ctx, broker.OrderRequest{
		Symbol:      sig.Symbol,
		Side:        side,
		Quantity:    qty,
		TimeInForce: "day",
	})
	if err != nil {
		e.log.Warn("order submission failed",
			zap.String("symbol", sig.Symbol),
			zap.String("action", string(sig.Action)),
			zap.Error(err))
		e.recordFailure(broker.Order{OrderRequest: broker.OrderRequest{Symbol: sig.Symbol, Side: side, Quantity: qty}},
			now, string(broker.Rejected), err.Error())
		return nil
	}

	fill, err := e.awaitFill(ctx, ord.ID)
	if err != nil {
		if ctx.Err() != nil {
			// Session cancelled mid-wait: nothing was applied.
			return ctx.Err()
		}
		e.recordFailure(ord, now, "TIMEOUT", "order did not fill within timeout")
		return nil
	}
	if fill.Status != broker.Filled {
		e.recordFailure(ord, now, string(fill.Status), fill.Reason)
		return nil
	}

	signed := fill.Quantity
	if side == broker.Sell {
		signed = -signed
	}

	// Fill resolution is atomic: ledger update, counters, cooldown and
	// journal records land together or not at all.
	e.mu.Lock()
	realized := e.state.ApplyFill(sig.Symbol, signed, fill.Price, fill.FilledAt)
	e.state.MarkToMarket(e.ticks.Close, fill.FilledAt)
	e.state.LifetimeTrades++
	if e.pipeline.Cooldown != nil {
		e.pipeline.Cooldown.Mark(sig.Symbol, now)
	}
	newState := e.state.Position(sig.Symbol).State()
	if err := e.jour.RecordTrade(journal.TradeRecord{
		Time:           fill.FilledAt,
		OrderID:        ord.ID,
		Symbol:         sig.Symbol,
		Side:           string(side),
		Quantity:       fill.Quantity,
		FilledPrice:    fill.Price,
		Status:         string(broker.Filled),
		PortfolioValue: e.state.PortfolioValue,
	}); err != nil {
		e.log.Error("record trade", zap.Error(err))
	}
	e.emitEventLocked(journal.EventTrade, fill.FilledAt)
	e.mu.Unlock()

	e.log.Info("trade executed",
		zap.String("symbol", sig.Symbol),
		zap.String("side", string(side)),
		zap.Int64("qty", fill.Quantity),
		zap.Float64("price", fill.Price),
		zap.Float64("realized_pl", realized),
		zap.String("position_state", string(newState)))
	return nil
}

// orderQuantityLocked sizes the order. Reducing orders close the held
// quantity exactly, so a single signal never flips through flat.
// Opening orders use risk-based sizing: floor(risk% x PV / price),
// minimum 1 share, capped by the per-position limit and, for buys,
// buying power.
func (e *Engine) orderQuantityLocked(action signal.Action, price float64, pos account.Position) int64 {
	if price <= 0 {
		return 0
	}
	if action == signal.Sell && pos.Quantity > 0 {
		return pos.Quantity
	}
	if action == signal.Buy && pos.Quantity < 0 {
		return -pos.Quantity
	}

	pv := e.state.PortfolioValue
	qty := int64(math.Floor(pv * e.cfg.RiskPercent / 100 / price))
	if qty < 1 {
		qty = 1
	}
	if maxQty := int64(math.Floor(pv * e.cfg.MaxPositionPct / 100 / price)); qty > maxQty {
		qty = maxQty
	}
	if action == signal.Buy {
		if affordable := int64(math.Floor(e.state.BuyingPower / price)); qty > affordable {
			qty = affordable
		}
	}
	return qty
}

// awaitFill blocks until the order reaches a terminal state, the fill
// timeout elapses, or the session is cancelled. Brokers that implement
// FillWaiter resolve through a channel; others are polled.
func (e *Engine) awaitFill(ctx context.Context, orderID string) (broker.Fill, error) {
	wctx, cancel := context.WithTimeout(ctx, e.cfg.FillTimeout)
	defer cancel()

	if w, ok := e.b.(broker.FillWaiter); ok {
		fill, err := w.WaitFill(wctx, orderID)
		if err != nil {
			if ctx.Err() != nil {
				return broker.Fill{}, ctx.Err()
			}
			return broker.Fill{}, broker.ErrFillTimeout
		}
		return fill, nil
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		fill, err := e.b.OrderStatus(wctx, orderID)
		if err == nil && fill.Terminal() {
			return fill, nil
		}
		select {
		case <-wctx.Done():
			if ctx.Err() != nil {
				return broker.Fill{}, ctx.Err()
			}
			return broker.Fill{}, broker.ErrFillTimeout
		case <-ticker.C:
		}
	}
}

func (e *Engine) recordFailure(ord broker.Order, ts time.Time, status, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.log.Warn("trade attempt failed",
		zap.String("symbol", ord.Symbol),
		zap.String("side", string(ord.Side)),
		zap.String("status", status),
		zap.String("reason", reason))
	if err := e.jour.RecordTrade(journal.TradeRecord{
		Time:            ts,
		OrderID:         ord.ID,
		Symbol:          ord.Symbol,
		Side:            string(ord.Side),
		Quantity:        ord.Quantity,
		Status:          status,
		RejectionReason: reason,
		PortfolioValue:  e.state.PortfolioValue,
	}); err != nil {
		e.log.Error("record trade", zap.Error(err))
	}
	e.emitEventLocked(journal.EventTradeFailed, ts)
}

func (e *Engine) emitEvent(typ string, ts time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emitEventLocked(typ, ts)
}

func (e *Engine) emitEventLocked(typ string, ts time.Time) {
	if err := e.jour.RecordEvent(journal.EventRecord{
		Time:           ts,
		Type:           typ,
		Cash:           e.state.Cash,
		PortfolioValue: e.state.PortfolioValue,
		OpenPositions:  e.state.OpenPositions(),
		LifetimeTrades: e.state.LifetimeTrades,
	}); err != nil {
		e.log.Error("record event", zap.Error(err))
	}
}
