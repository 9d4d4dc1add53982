package sim

import (
	"github.com/rustyeddy/tradecore/broker"
	"github.com/rustyeddy/tradecore/market"
)

// GetAccount recomputes balance and marks from realised history and returns
// the account.
func (e *Engine) GetAccount(criteria broker.AccountCriteria) broker.Response[*broker.Account] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if criteria.Descriptor != "" && criteria.Descriptor != e.acct.Descriptor {
		return broker.Fail[*broker.Account](
			broker.Validationf("unknown account %q", criteria.Descriptor))
	}
	e.acct.Recompute()
	return broker.OK(e.acct)
}

// GetPoints returns the most recent count ticks for the instrument, oldest
// first. count <= 0 returns the full series.
func (e *Engine) GetPoints(name string, count int) broker.Response[[]market.Point] {
	e.mu.Lock()
	defer e.mu.Unlock()

	in, ok := e.acct.Instruments[name]
	if !ok {
		return broker.Fail[[]market.Point](broker.Validationf("unknown instrument %q", name))
	}

	points := in.Points
	if count > 0 && count < len(points) {
		points = points[len(points)-count:]
	}
	out := make([]market.Point, len(points))
	copy(out, points)
	return broker.OK(out)
}

// GetDom reconstructs what the simulator knows of the book: the single
// top-of-book level from the latest tick.
func (e *Engine) GetDom(name string) broker.Response[*broker.Dom] {
	e.mu.Lock()
	defer e.mu.Unlock()

	in, ok := e.acct.Instruments[name]
	if !ok {
		return broker.Fail[*broker.Dom](broker.Validationf("unknown instrument %q", name))
	}
	last, ok := in.Last()
	if !ok {
		return broker.Fail[*broker.Dom](broker.Validationf("no market data for %q", name))
	}

	return broker.OK(&broker.Dom{
		Name: name,
		Bids: []broker.DomLevel{{Price: last.Bid, Size: last.BidSize}},
		Asks: []broker.DomLevel{{Price: last.Ask, Size: last.AskSize}},
	})
}

// GetOptions is not supported by the simulator.
func (e *Engine) GetOptions(name string) broker.Response[*broker.OptionChain] {
	return broker.Fail[*broker.OptionChain](broker.NotImplemented("sim: GetOptions"))
}

// GetPositions returns snapshots of the active positions.
func (e *Engine) GetPositions() broker.Response[[]*broker.Position] {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*broker.Position, 0, len(e.acct.ActivePositions))
	for _, p := range e.acct.ActivePositions {
		out = append(out, p.Clone())
	}
	return broker.OK(out)
}

// GetOrders returns snapshots of the working orders.
func (e *Engine) GetOrders() broker.Response[[]*broker.Order] {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*broker.Order, 0, len(e.acct.ActiveOrders))
	for _, o := range e.acct.ActiveOrders {
		out = append(out, o.Clone())
	}
	return broker.OK(out)
}
