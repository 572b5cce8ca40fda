package journal

// trades is a plain rowid table: failed submission attempts carry no
// broker order id, so order_id cannot be a key.
const schema = `
CREATE TABLE IF NOT EXISTS trades (
	order_id TEXT,
	time DATETIME NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	qty INTEGER NOT NULL,
	filled_price REAL,
	status TEXT NOT NULL,
	rejection_reason TEXT,
	portfolio_value REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	time DATETIME NOT NULL,
	update_type TEXT NOT NULL,
	cash REAL NOT NULL,
	portfolio_value REAL NOT NULL,
	open_positions INTEGER NOT NULL,
	lifetime_trades INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_time ON events(time);
`
