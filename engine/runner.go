package engine

import (
	"context"
	"errors"

	"github.com/tickhouse/papertrader/feed"
	"github.com/tickhouse/papertrader/signal"
)

// Stats summarizes one runner session.
type Stats struct {
	Ticks   int // ticks read from the feed (admitted or not)
	Signals int // signals delivered to the engine
}

// Runner drives an Engine from a tick feed and a signal feed. Both
// feeds are assumed time-ordered; signals are delivered with the first
// tick whose timestamp is not earlier than the signal's.
type Runner struct {
	Engine  *Engine
	Ticks   feed.TickFeed
	Signals feed.SignalFeed

	// Symbol, when set, drops signals for any other symbol before they
	// reach the engine.
	Symbol string
}

// Run consumes both feeds to exhaustion or until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	if r.Engine == nil || r.Ticks == nil || r.Signals == nil {
		return Stats{}, errors.New("runner: Engine, Ticks and Signals are required")
	}
	defer r.Ticks.Close()
	defer r.Signals.Close()

	var (
		stats   Stats
		pending *signal.Signal
	)
	for {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		tick, ok, err := r.Ticks.Next()
		if err != nil {
			return stats, err
		}
		if !ok {
			return stats, nil
		}
		stats.Ticks++

		var due []signal.Signal
		for {
			if pending == nil {
				sig, ok, err := r.Signals.Next()
				if err != nil {
					return stats, err
				}
				if !ok {
					break
				}
				if r.Symbol != "" && sig.Symbol != r.Symbol {
					continue
				}
				pending = &sig
			}
			if pending.Time.After(tick.Time) {
				break
			}
			due = append(due, *pending)
			stats.Signals++
			pending = nil
		}

		if err := r.Engine.ProcessTick(ctx, tick, due); err != nil {
			return stats, err
		}
	}
}
