package account

// PositionState is derived from the sign of a position's quantity. It is
// never stored independently, so it cannot diverge from the ledger.
type PositionState string

const (
	Flat  PositionState = "FLAT"
	Long  PositionState = "LONG"
	Short PositionState = "SHORT"
)

// Position is a per-symbol ledger entry. Quantity is signed: positive is
// long, negative is short.
type Position struct {
	Symbol        string
	Quantity      int64
	AvgEntryPrice float64
}

func (p Position) State() PositionState {
	switch {
	case p.Quantity > 0:
		return Long
	case p.Quantity < 0:
		return Short
	default:
		return Flat
	}
}
