package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

type CSVJournal struct {
	deals  *csv.Writer
	equity *csv.Writer
	df, ef *os.File
}

func NewCSV(dealsPath, equityPath string) (*CSVJournal, error) {
	df, err := os.Create(dealsPath)
	if err != nil {
		return nil, err
	}
	ef, err := os.Create(equityPath)
	if err != nil {
		df.Close()
		return nil, err
	}

	dw := csv.NewWriter(df)
	ew := csv.NewWriter(ef)

	if err := dw.Write([]string{"deal_id", "order_id", "position_id", "instrument", "side", "volume", "price", "time", "reason", "gain_loss"}); err != nil {
		return nil, err
	}
	if err := ew.Write([]string{"time", "balance", "equity", "gain_loss"}); err != nil {
		return nil, err
	}

	dw.Flush()
	if err := dw.Error(); err != nil {
		return nil, err
	}
	ew.Flush()
	if err := ew.Error(); err != nil {
		return nil, err
	}

	return &CSVJournal{dw, ew, df, ef}, nil
}

func (j *CSVJournal) RecordDeal(d DealRecord) error {
	err := j.deals.Write([]string{
		d.DealID,
		d.OrderID,
		d.PositionID,
		d.Instrument,
		d.Side,
		f(d.Volume),
		f(d.Price),
		d.Time.Format(time.RFC3339),
		d.Reason,
		f(d.GainLoss),
	})
	if err != nil {
		return err
	}
	j.deals.Flush()
	return j.deals.Error()
}

func (j *CSVJournal) RecordEquity(e EquitySnapshot) error {
	err := j.equity.Write([]string{
		e.Time.Format(time.RFC3339),
		f(e.Balance),
		f(e.Equity),
		f(e.GainLoss),
	})
	if err != nil {
		return err
	}
	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSVJournal) Close() error {
	j.deals.Flush()
	if err := j.deals.Error(); err != nil {
		return err
	}
	j.equity.Flush()
	if err := j.equity.Error(); err != nil {
		return err
	}

	if err := j.df.Close(); err != nil {
		return err
	}
	return j.ef.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
