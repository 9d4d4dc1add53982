package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		return nil, err
	}

	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordDeal(d DealRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO deals
		(deal_id, order_id, position_id, instrument, side, volume, price, time, reason, gain_loss)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.DealID, d.OrderID, d.PositionID, d.Instrument, d.Side,
		d.Volume, d.Price, d.Time, d.Reason, d.GainLoss,
	)
	return err
}

func (j *SQLiteJournal) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(time, balance, equity, gain_loss)
		VALUES (?, ?, ?, ?)`,
		e.Time, e.Balance, e.Equity, e.GainLoss,
	)
	return err
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
