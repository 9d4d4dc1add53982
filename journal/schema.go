// journal/schema.go
package journal

const Schema = `
CREATE TABLE IF NOT EXISTS deals (
	deal_id TEXT PRIMARY KEY,
	order_id TEXT,
	position_id TEXT NOT NULL,
	instrument TEXT NOT NULL,
	side TEXT NOT NULL,
	volume REAL NOT NULL,
	price REAL NOT NULL,
	time DATETIME NOT NULL,
	reason TEXT NOT NULL,
	gain_loss REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
	time DATETIME NOT NULL,
	balance REAL NOT NULL,
	equity REAL NOT NULL,
	gain_loss REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_deals_instrument ON deals(instrument);
CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);
`
