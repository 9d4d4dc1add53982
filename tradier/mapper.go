package tradier

import (
	"strconv"
	"time"

	"github.com/rustyeddy/tradecore/broker"
	"github.com/rustyeddy/tradecore/market"
)

// quoteMsg is a market-events quote frame. Fields the core does not need
// are left out and dropped on decode.
type quoteMsg struct {
	Type    string  `json:"type"`
	Symbol  string  `json:"symbol"`
	Bid     float64 `json:"bid"`
	BidSize float64 `json:"bidsz"`
	Ask     float64 `json:"ask"`
	AskSize float64 `json:"asksz"`
	BidDate string  `json:"biddate"` // epoch milliseconds as a string
	AskDate string  `json:"askdate"`
}

// pointFromQuote translates a quote frame into a core Point.
func pointFromQuote(m quoteMsg) market.Point {
	p := market.Point{
		Instrument: m.Symbol,
		Time:       msEpoch(m.AskDate, m.BidDate),
		Bid:        m.Bid,
		BidSize:    m.BidSize,
		Ask:        m.Ask,
		AskSize:    m.AskSize,
	}
	p.ResolveLast()
	return p
}

func msEpoch(candidates ...string) time.Time {
	for _, s := range candidates {
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
			return time.UnixMilli(ms).UTC()
		}
	}
	return time.Now().UTC()
}

// wireSide renders a core side for the order endpoint.
func wireSide(s broker.Side) string {
	if s == broker.Sell {
		return "sell"
	}
	return "buy"
}

// wireType renders a core order type for the order endpoint.
func wireType(t broker.OrderType) string {
	switch t {
	case broker.Limit:
		return "limit"
	case broker.Stop:
		return "stop"
	case broker.StopLimit:
		return "stop_limit"
	}
	return "market"
}

// orderStatus maps a wire order status onto the core lifecycle. Unknown
// statuses stay Placed: the lifecycle only ever moves forward, so guessing
// a terminal state would be worse than lagging.
func orderStatus(s string) broker.Status {
	switch s {
	case "filled":
		return broker.Filled
	case "partially_filled":
		return broker.Partitioned
	case "canceled", "expired":
		return broker.Cancelled
	case "rejected", "error":
		return broker.Rejected
	case "pending", "open", "submitted":
		return broker.Placed
	}
	return broker.Placed
}

// wireOrder is one order row from the accounts orders endpoint.
type wireOrder struct {
	ID           int     `json:"id"`
	Symbol       string  `json:"symbol"`
	Side         string  `json:"side"`
	Type         string  `json:"type"`
	Quantity     float64 `json:"quantity"`
	Price        float64 `json:"price"`
	StopPrice    float64 `json:"stop_price"`
	Status       string  `json:"status"`
	AvgFillPrice float64 `json:"avg_fill_price"`
	ExecQuantity float64 `json:"exec_quantity"`
	CreateDate   string  `json:"create_date"`
}

// orderFromWire translates an order row into the core model.
func orderFromWire(w wireOrder) *broker.Order {
	o := &broker.Order{
		Id:     strconv.Itoa(w.ID),
		Name:   w.Symbol,
		Volume: w.Quantity,
		Price:  w.Price,
		Status: orderStatus(w.Status),
	}
	if w.Side == "sell" || w.Side == "sell_short" {
		o.Side = broker.Sell
	}
	switch w.Type {
	case "limit":
		o.Type = broker.Limit
	case "stop":
		o.Type = broker.Stop
		o.Price = w.StopPrice
	case "stop_limit":
		o.Type = broker.StopLimit
	default:
		o.Type = broker.Market
	}
	if t, err := time.Parse(time.RFC3339, w.CreateDate); err == nil {
		o.Time = t.UTC()
	}
	if o.Status == broker.Filled {
		o.Transaction = &broker.Transaction{
			Instrument: w.Symbol,
			Price:      w.AvgFillPrice,
			Volume:     w.ExecQuantity,
			Time:       o.Time,
		}
	}
	return o
}

// wirePosition is one position row from the accounts positions endpoint.
type wirePosition struct {
	Symbol       string  `json:"symbol"`
	Quantity     float64 `json:"quantity"`
	CostBasis    float64 `json:"cost_basis"`
	DateAcquired string  `json:"date_acquired"`
}

// positionFromWire translates a position row. Tradier reports shorts as
// negative quantities; the core keeps volume positive and tracks side.
func positionFromWire(w wirePosition) *broker.Position {
	side := broker.Buy
	volume := w.Quantity
	if volume < 0 {
		side = broker.Sell
		volume = -volume
	}

	p := &broker.Position{
		Name:   w.Symbol,
		Side:   side,
		Volume: volume,
	}
	if volume > 0 {
		// cost_basis and quantity share a sign for shorts, so the per-unit
		// price comes out positive either way.
		open := w.CostBasis / w.Quantity
		p.OpenPrices = []broker.Fill{{Price: open, Volume: volume}}
		p.Recalculate()
	}
	if t, err := time.Parse(time.RFC3339, w.DateAcquired); err == nil {
		p.Time = t.UTC()
	}
	return p
}
