package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(order_id, time, symbol, side, qty, filled_price, status, rejection_reason, portfolio_value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.OrderID, t.Time, t.Symbol, t.Side, t.Quantity,
		t.FilledPrice, t.Status, t.RejectionReason, t.PortfolioValue,
	)
	return err
}

func (j *SQLite) RecordEvent(e EventRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO events
		(time, update_type, cash, portfolio_value, open_positions, lifetime_trades)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.Time, e.Type, e.Cash, e.PortfolioValue, e.OpenPositions, e.LifetimeTrades,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
