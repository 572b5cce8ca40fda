package signal

import (
	"sync"
	"time"
)

// Cooldown tracks the last executed trade per symbol and enforces a
// minimum spacing between trades, independent of signal arrival rate.
type Cooldown struct {
	mu   sync.Mutex
	min  time.Duration
	last map[string]time.Time
}

func NewCooldown(min time.Duration) *Cooldown {
	return &Cooldown{min: min, last: make(map[string]time.Time)}
}

// Ready reports whether symbol may trade at now.
func (c *Cooldown) Ready(symbol string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	last, ok := c.last[symbol]
	if !ok {
		return true
	}
	return now.Sub(last) >= c.min
}

// Mark records an executed trade. Called only after a FILLED order.
func (c *Cooldown) Mark(symbol string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last[symbol] = now
}
