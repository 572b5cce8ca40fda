package account

import "time"

// State is the single mutable account aggregate: cash, open positions
// and session counters. It carries no lock of its own; exactly one
// engine owns a State and serializes every mutation.
type State struct {
	Cash           float64
	PortfolioValue float64
	BuyingPower    float64
	LifetimeTrades int
	SessionCount   int
	LastUpdated    time.Time

	positions map[string]Position
}

func NewState(initialCash float64) *State {
	return &State{
		Cash:           initialCash,
		PortfolioValue: initialCash,
		BuyingPower:    initialCash,
		positions:      make(map[string]Position),
	}
}

// Position returns the ledger entry for symbol, zero-valued when flat.
func (s *State) Position(symbol string) Position {
	p, ok := s.positions[symbol]
	if !ok {
		return Position{Symbol: symbol}
	}
	return p
}

// Positions returns a copy of all open positions.
func (s *State) Positions() map[string]Position {
	out := make(map[string]Position, len(s.positions))
	for sym, p := range s.positions {
		out[sym] = p
	}
	return out
}

func (s *State) OpenPositions() int { return len(s.positions) }

// ApplyFill applies a resolved fill to the ledger. qty is signed: a BUY
// is positive, a SELL negative. Cash moves by the full notional; adds
// re-average the entry price, reduces realize P&L against it. The caller
// caps reducing orders at the held quantity, so a single fill never
// crosses through flat. Returns realized P&L for the reduced portion.
func (s *State) ApplyFill(symbol string, qty int64, price float64, at time.Time) float64 {
	s.Cash -= float64(qty) * price

	pos, held := s.positions[symbol]
	var realized float64

	switch {
	case !held || pos.Quantity == 0:
		pos = Position{Symbol: symbol, Quantity: qty, AvgEntryPrice: price}
	case sameSign(pos.Quantity, qty):
		// Add to an existing position: weighted-average entry.
		total := pos.AvgEntryPrice*abs(pos.Quantity) + price*abs(qty)
		pos.Quantity += qty
		pos.AvgEntryPrice = total / abs(pos.Quantity)
	default:
		// Reduce toward flat.
		closed := min64(absInt(qty), absInt(pos.Quantity))
		if pos.Quantity > 0 {
			realized = (price - pos.AvgEntryPrice) * float64(closed)
		} else {
			realized = (pos.AvgEntryPrice - price) * float64(closed)
		}
		pos.Quantity += qty
	}

	if pos.Quantity == 0 {
		delete(s.positions, symbol)
	} else {
		s.positions[symbol] = pos
	}
	s.LastUpdated = at
	return realized
}

// MarkToMarket revalues open positions with the latest prices and
// recomputes portfolio value and buying power. Positions without a
// quoted price yet are valued at their entry price.
func (s *State) MarkToMarket(price func(symbol string) (float64, bool), at time.Time) {
	value := s.Cash
	for _, p := range s.positions {
		px, ok := price(p.Symbol)
		if !ok {
			px = p.AvgEntryPrice
		}
		value += float64(p.Quantity) * px
	}
	s.PortfolioValue = value
	s.BuyingPower = value
	s.LastUpdated = at
}

func sameSign(a, b int64) bool { return (a > 0) == (b > 0) }

func absInt(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func abs(v int64) float64 { return float64(absInt(v)) }

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
