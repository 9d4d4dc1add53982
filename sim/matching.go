package sim

import (
	"sort"
	"time"

	"github.com/rustyeddy/tradecore/broker"
	"github.com/rustyeddy/tradecore/journal"
	"github.com/rustyeddy/tradecore/market"
)

// OnPoint is the engine's tick entry point: append to the instrument series,
// trigger resting orders, refresh the active position's mark, and snapshot
// equity. The merge scheduler calls it once per virtual-clock period.
func (e *Engine) OnPoint(p market.Point) {
	e.mu.Lock()

	in := e.acct.Instrument(p.Instrument)
	in.Append(p)

	e.evaluateRestingLocked(p)

	if pos := e.acct.ActivePositions[p.Instrument]; pos != nil {
		pos.MarkToMarket(p.Last)
	}

	e.syncJournalLocked()
	estimated := e.acct.EstimatedGainLoss()
	e.opts.Journal.RecordEquity(journal.EquitySnapshot{
		Time:     p.Time,
		Balance:  e.acct.Balance,
		Equity:   e.acct.Balance + estimated,
		GainLoss: estimated,
	})

	e.mu.Unlock()

	e.points.Created(p)
}

// evaluateRestingLocked walks the working orders on p's instrument and fills
// the ones the tick crossed. Orders are visited in id order so a replay is
// deterministic.
func (e *Engine) evaluateRestingLocked(p market.Point) {
	var due []*broker.Order
	for _, o := range e.acct.ActiveOrders {
		if o.Name == "" {
			// An active order without an instrument is a corrupted working
			// set. Abort the session rather than matching garbage.
			e.abortLocked(broker.Invariantf("active order %s has no instrument", o.Id))
			return
		}
		if o.Name != p.Instrument || o.Status != broker.Placed || !o.Type.Resting() {
			continue
		}
		if triggered(o, p) {
			due = append(due, o)
		}
	}

	sort.Slice(due, func(i, j int) bool { return due[i].Id < due[j].Id })
	for _, o := range due {
		if o.Status != broker.Placed {
			continue // cancelled by an earlier fill's bracket teardown
		}
		e.fillLocked(o, p)
	}
}

// triggered applies the crossing rules: buy-stops and sell-limits arm on the
// ask, sell-stops and buy-limits on the bid.
func triggered(o *broker.Order, p market.Point) bool {
	stop := o.Type == broker.Stop || o.Type == broker.StopLimit
	limit := o.Type == broker.Limit

	switch {
	case o.Side == broker.Buy && stop, o.Side == broker.Sell && limit:
		return p.Ask >= o.Price
	case o.Side == broker.Sell && stop, o.Side == broker.Buy && limit:
		return p.Bid <= o.Price
	}
	return false
}

// fillLocked executes o as a market order against the tick's top of book:
// buys lift the ask, sells hit the bid. The order event goes out before the
// position delta.
func (e *Engine) fillLocked(o *broker.Order, p market.Point) {
	price := p.Ask
	if o.Side == broker.Sell {
		price = p.Bid
	}

	o.Transaction = &broker.Transaction{
		Instrument: o.Name,
		Price:      price,
		Volume:     o.Volume,
		Time:       p.Time,
	}
	o.Status = broker.Filled
	e.acct.UpdateOrder(o)

	pos := e.acct.OpenPosition(o)
	e.placeBracketsLocked(o, pos)
}

// CreateOrders admits each order: market orders fill immediately at the
// current top of book, resting orders join the working set and are first
// evaluated on the next tick. Invalid orders are rejected per-order without
// touching account state.
func (e *Engine) CreateOrders(orders ...*broker.Order) broker.Response[[]*broker.Order] {
	e.mu.Lock()

	var errs []*broker.Error
	for _, o := range orders {
		if err := e.admitLocked(o); err != nil {
			errs = append(errs, err)
		}
	}
	e.syncJournalLocked()

	e.mu.Unlock()

	return broker.Response[[]*broker.Order]{Data: orders, Errors: errs}
}

func (e *Engine) admitLocked(o *broker.Order) *broker.Error {
	if verr := validate(o); verr != nil {
		e.rejectLocked(o, verr)
		return verr
	}

	var last market.Point
	var hasTick bool
	if in, ok := e.acct.Instruments[o.Name]; ok {
		last, hasTick = in.Last()
	}
	if o.Time.IsZero() {
		if hasTick {
			o.Time = last.Time
		} else {
			o.Time = time.Now().UTC()
		}
	}

	if o.Type == broker.Market {
		if !hasTick {
			verr := broker.Validationf("no market data for %q", o.Name)
			e.rejectLocked(o, verr)
			return verr
		}
		price := last.Ask
		if o.Side == broker.Sell {
			price = last.Bid
		}
		o.Transaction = &broker.Transaction{
			Instrument: o.Name,
			Price:      price,
			Volume:     o.Volume,
			Time:       last.Time,
		}
		o.Status = broker.Filled
		if err := e.acct.AddOrder(o); err != nil {
			verr := broker.Validationf("%v", err)
			o.Status = broker.Rejected
			e.errors.Created(verr)
			return verr
		}
		pos := e.acct.OpenPosition(o)
		e.placeBracketsLocked(o, pos)
		return nil
	}

	o.Status = broker.Placed
	if err := e.acct.AddOrder(o); err != nil {
		verr := broker.Validationf("%v", err)
		o.Status = broker.Rejected
		e.errors.Created(verr)
		return verr
	}
	e.acct.Instrument(o.Name)
	return nil
}

// placeBracketsLocked admits the parent's bracket children once a fill left
// an active position behind. Children inherit the parent's instrument and
// ride along on the position so a closure cancels them.
func (e *Engine) placeBracketsLocked(parent *broker.Order, pos *broker.Position) {
	if pos == nil || len(parent.Orders) == 0 {
		return
	}
	for _, child := range parent.Orders {
		child.Name = parent.Name
		child.Instruction = broker.Brace
		if child.Time.IsZero() {
			child.Time = parent.Time
		}
		if verr := validate(child); verr != nil {
			e.rejectLocked(child, verr)
			continue
		}
		child.Status = broker.Placed
		if err := e.acct.AddOrder(child); err != nil {
			e.rejectLocked(child, broker.Validationf("%v", err))
			continue
		}
		pos.Orders = append(pos.Orders, child)
	}
}

func (e *Engine) rejectLocked(o *broker.Order, verr *broker.Error) {
	o.Status = broker.Rejected
	e.acct.OrderStream().Created(o.Clone())
	e.errors.Created(verr)
}

func validate(o *broker.Order) *broker.Error {
	switch {
	case o == nil:
		return broker.Validationf("nil order")
	case o.Name == "":
		return broker.Validationf("order needs an instrument")
	case o.Side != broker.Buy && o.Side != broker.Sell:
		return broker.Validationf("order %s: unknown side", o.Id)
	case o.Volume <= 0:
		return broker.Validationf("order %s: volume must be positive", o.Id)
	case o.Type != broker.Market && o.Price <= 0:
		return broker.Validationf("order %s: %s orders need a price", o.Id, o.Type)
	}
	return nil
}

// DeleteOrders cancels the given orders. Cancelling an unknown or
// already-cancelled order is a no-op.
func (e *Engine) DeleteOrders(orders ...*broker.Order) broker.Response[[]*broker.Order] {
	e.mu.Lock()
	for _, o := range orders {
		if o == nil {
			continue
		}
		e.acct.RemoveOrder(o.Id)
	}
	e.mu.Unlock()
	return broker.OK(orders)
}

// abortLocked handles an invariant violation: fatal for the session. The
// feed loop is signalled to stop but not awaited, since the violation is
// detected on the feed goroutine itself.
func (e *Engine) abortLocked(inv *broker.Error) {
	e.errors.Created(inv)
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.status = broker.Disconnected
}

func (e *Engine) syncJournalLocked() {
	for ; e.journaled < len(e.acct.Deals); e.journaled++ {
		d := e.acct.Deals[e.journaled]
		e.opts.Journal.RecordDeal(journal.DealRecord{
			DealID:     d.Id,
			OrderID:    d.OrderId,
			PositionID: d.PositionId,
			Instrument: d.Instrument,
			Side:       d.Side.String(),
			Volume:     d.Volume,
			Price:      d.Price,
			Time:       d.Time,
			Reason:     d.Reason,
			GainLoss:   d.GainLoss,
		})
	}
}
