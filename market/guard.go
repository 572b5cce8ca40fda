package market

import (
	"fmt"
	"sync"
	"time"
)

var (
	// ErrStaleTick means the tick is older than the freshness threshold.
	ErrStaleTick = fmt.Errorf("stale tick")
	// ErrMarketClosed means the tick's timestamp falls outside trading hours.
	ErrMarketClosed = fmt.Errorf("market closed")
	// ErrOutOfOrder means the tick's timestamp is not newer than the last
	// admitted tick for the same symbol.
	ErrOutOfOrder = fmt.Errorf("out-of-order tick")
)

// Hours describes a daily trading session in a given location.
type Hours struct {
	Location    *time.Location
	OpenMinute  int // minutes after midnight, e.g. 9:30 -> 570
	CloseMinute int // e.g. 16:00 -> 960
}

// DefaultHours is the US equity session: 9:30-16:00 US/Eastern, weekdays.
func DefaultHours() (Hours, error) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return Hours{}, fmt.Errorf("load market timezone: %w", err)
	}
	return Hours{Location: loc, OpenMinute: 9*60 + 30, CloseMinute: 16 * 60}, nil
}

// Contains reports whether ts falls inside the session.
func (h Hours) Contains(ts time.Time) bool {
	local := ts.In(h.Location)
	wd := local.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	minute := local.Hour()*60 + local.Minute()
	return minute >= h.OpenMinute && minute < h.CloseMinute
}

// Guard rejects market data that must never reach the execution engine:
// off-hours ticks, ticks older than the freshness threshold, and ticks
// that would reorder a symbol's stream. A rejected tick skips the whole
// processing cycle so the engine cannot trade on stale previous-session
// prices.
type Guard struct {
	maxAge          time.Duration
	hours           Hours
	allowAfterHours bool

	mu   sync.Mutex
	last map[string]time.Time
}

// NewGuard builds a freshness guard. allowAfterHours bypasses the
// trading-hours check, which is how tests and off-session dry runs
// exercise the engine.
func NewGuard(maxAge time.Duration, hours Hours, allowAfterHours bool) *Guard {
	return &Guard{
		maxAge:          maxAge,
		hours:           hours,
		allowAfterHours: allowAfterHours,
		last:            make(map[string]time.Time),
	}
}

// Admit returns nil when the tick may be processed. Each rejection wraps
// a distinguishable sentinel so the caller can surface the skip reason.
func (g *Guard) Admit(t Tick, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if last, ok := g.last[t.Symbol]; ok && !t.Time.After(last) {
		return fmt.Errorf("%w: %s at %s, last admitted %s",
			ErrOutOfOrder, t.Symbol, t.Time.Format(time.RFC3339), last.Format(time.RFC3339))
	}
	if !g.allowAfterHours && !g.hours.Contains(t.Time) {
		return fmt.Errorf("%w: %s at %s", ErrMarketClosed, t.Symbol, t.Time.Format(time.RFC3339))
	}
	if age := now.Sub(t.Time); age > g.maxAge {
		return fmt.Errorf("%w: %s is %s old (max %s)", ErrStaleTick, t.Symbol, age, g.maxAge)
	}

	g.last[t.Symbol] = t.Time
	return nil
}
