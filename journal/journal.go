// Package journal persists the account's audit trail: one record per deal
// (fill, reduction, closure) plus periodic equity snapshots.
package journal

import "time"

// DealRecord is the persisted form of one account deal.
type DealRecord struct {
	DealID     string
	OrderID    string
	PositionID string
	Instrument string
	Side       string
	Volume     float64
	Price      float64
	Time       time.Time
	Reason     string
	GainLoss   float64
}

// EquitySnapshot captures balance and mark-to-market at one instant.
type EquitySnapshot struct {
	Time     time.Time
	Balance  float64
	Equity   float64
	GainLoss float64
}

type Journal interface {
	RecordDeal(DealRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Nop discards everything. The simulator uses it when no journal is
// configured.
type Nop struct{}

func (Nop) RecordDeal(DealRecord) error       { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) Close() error                      { return nil }
