package broker

import (
	"time"

	"github.com/rustyeddy/tradecore/market"
)

// Fill is one entry of a position's open-price ledger.
type Fill struct {
	Price  float64
	Volume float64
}

// Position is the net exposure on one instrument, derived from filled
// orders. OpenPrice is the volume-weighted average of the OpenPrices ledger.
// An active position has CloseTime == nil and Volume > 0.
type Position struct {
	Id             string
	Name           string
	Side           Side
	Volume         float64
	OpenPrice      float64
	OpenPrices     []Fill
	Time           time.Time
	CloseTime      *time.Time
	ClosePrice     float64
	GainLoss       float64
	GainLossPoints float64
	Reason         string // why the position closed, empty while active
	Orders         []*Order
}

// Active reports whether the position is still open.
func (p *Position) Active() bool {
	return p.CloseTime == nil && p.Volume > 0
}

// Recalculate recomputes OpenPrice from the ledger.
func (p *Position) Recalculate() {
	var notional, volume float64
	for _, f := range p.OpenPrices {
		notional += f.Price * f.Volume
		volume += f.Volume
	}
	if volume > 0 {
		p.OpenPrice = notional / volume
	}
}

// MarkToMarket refreshes GainLossPoints and GainLoss against the given trade
// price without realising anything.
func (p *Position) MarkToMarket(last float64) {
	p.GainLossPoints = (last - p.OpenPrice) * p.Side.Sign()
	p.GainLoss = p.GainLossPoints * p.Volume * market.ContractSize(p.Name)
}

// realize stamps the closing fields. The realised amount is computed over
// closedVolume, which differs from p.Volume on a partial reduce.
func (p *Position) realize(price float64, volume float64, at time.Time, reason string) float64 {
	p.ClosePrice = price
	t := at
	p.CloseTime = &t
	p.Reason = reason
	p.GainLossPoints = (price - p.OpenPrice) * p.Side.Sign()
	p.GainLoss = p.GainLossPoints * volume * market.ContractSize(p.Name)
	return p.GainLoss
}

// trimLedger scales every ledger entry down so the total equals volume. The
// proportional trim keeps the volume-weighted open price unchanged.
func (p *Position) trimLedger(volume float64) []Fill {
	if p.Volume <= 0 {
		return nil
	}
	factor := volume / p.Volume
	out := make([]Fill, 0, len(p.OpenPrices))
	for _, f := range p.OpenPrices {
		out = append(out, Fill{Price: f.Price, Volume: f.Volume * factor})
	}
	return out
}

// Clone returns a copy safe to hand to stream subscribers.
func (p *Position) Clone() *Position {
	cp := *p
	if p.CloseTime != nil {
		t := *p.CloseTime
		cp.CloseTime = &t
	}
	cp.OpenPrices = append([]Fill(nil), p.OpenPrices...)
	cp.Orders = append([]*Order(nil), p.Orders...)
	return &cp
}
