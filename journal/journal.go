package journal

import "time"

// Update types for event records.
const (
	EventInit        = "INIT"
	EventTick        = "TICK"
	EventTrade       = "TRADE"
	EventTickSkipped = "TICK-SKIPPED"
	EventTradeFailed = "TRADE-FAILED"
)

// TradeRecord is one resolved order attempt, filled or not.
type TradeRecord struct {
	Time            time.Time `json:"timestamp"`
	OrderID         string    `json:"order_id"`
	Symbol          string    `json:"symbol"`
	Side            string    `json:"side"`
	Quantity        int64     `json:"qty"`
	FilledPrice     float64   `json:"filled_price,omitempty"`
	Status          string    `json:"status"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
	PortfolioValue  float64   `json:"resulting_portfolio_value"`
}

// EventRecord is one equity snapshot, written per admitted tick or trade.
type EventRecord struct {
	Time           time.Time `json:"timestamp"`
	Type           string    `json:"update_type"`
	Cash           float64   `json:"cash"`
	PortfolioValue float64   `json:"portfolio_value"`
	OpenPositions  int       `json:"open_position_count"`
	LifetimeTrades int       `json:"lifetime_trades_count"`
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEvent(EventRecord) error
	Close() error
}

// Nop discards all records. Useful in tests and dry runs.
type Nop struct{}

func (Nop) RecordTrade(TradeRecord) error { return nil }
func (Nop) RecordEvent(EventRecord) error { return nil }
func (Nop) Close() error                  { return nil }
