package market

import (
	"errors"
	"sync"
	"time"
)

// Tick is a single timestamped OHLCV bar for one symbol. Ticks are
// produced externally and consumed once per engine iteration.
type Tick struct {
	Symbol string    `json:"symbol"`
	Time   time.Time `json:"timestamp"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// TickStore holds the latest tick seen for each symbol.
type TickStore struct {
	mu    sync.RWMutex
	ticks map[string]Tick
}

func NewTickStore() *TickStore {
	return &TickStore{ticks: make(map[string]Tick)}
}

func (ts *TickStore) Set(t Tick) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.ticks[t.Symbol] = t
}

func (ts *TickStore) Get(symbol string) (Tick, error) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	t, ok := ts.ticks[symbol]
	if !ok {
		return Tick{}, errors.New("tick not found")
	}
	return t, nil
}

// Close returns the latest close price for symbol, if one has been seen.
func (ts *TickStore) Close(symbol string) (float64, bool) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	t, ok := ts.ticks[symbol]
	if !ok {
		return 0, false
	}
	return t.Close, true
}
