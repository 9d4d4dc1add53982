package broker

import (
	"fmt"
	"time"

	"github.com/rustyeddy/tradecore/internal/id"
	"github.com/rustyeddy/tradecore/market"
	"github.com/rustyeddy/tradecore/stream"
)

// Close reasons recorded on archived positions and deals.
const (
	ReasonClose      = "Close"
	ReasonIncrease   = "Increase"
	ReasonReduce     = "Reduce"
	ReasonReverse    = "Reverse"
	ReasonManual     = "ManualClose"
	ReasonStopLoss   = "StopLoss"
	ReasonTakeProfit = "TakeProfit"
)

// Deal is one entry of the account's audit log: every fill and closure
// leaves exactly one deal behind.
type Deal struct {
	Id         string
	OrderId    string
	PositionId string
	Instrument string
	Side       Side
	Volume     float64
	Price      float64
	Time       time.Time
	Reason     string
	GainLoss   float64
}

// Account holds the full trading state for one descriptor: balance, order
// history and working set, archived and active positions, and the deal log.
// The account is the single owner of these maps; the gateway driving it is
// the only mutator, and observers consume cloned snapshots via the order and
// position streams.
type Account struct {
	Descriptor     string
	InitialBalance float64
	Balance        float64

	Instruments     map[string]*market.Instrument
	Orders          []*Order
	ActiveOrders    map[string]*Order
	Positions       []*Position
	ActivePositions map[string]*Position
	Deals           []Deal

	// NewId generates order/position/deal ids. Defaults to monotonic ULIDs.
	NewId func() string

	orders    *stream.Stream[*Order]
	positions *stream.Stream[*Position]
}

func NewAccount(descriptor string, balance float64) *Account {
	return &Account{
		Descriptor:      descriptor,
		InitialBalance:  balance,
		Balance:         balance,
		Instruments:     make(map[string]*market.Instrument),
		ActiveOrders:    make(map[string]*Order),
		ActivePositions: make(map[string]*Position),
		NewId:           id.New,
	}
}

// OrderStream carries every order lifecycle event in causal order.
func (a *Account) OrderStream() *stream.Stream[*Order] {
	if a.orders == nil {
		a.orders = stream.New[*Order]()
	}
	return a.orders
}

// PositionStream carries one delta per fill plus manual closures.
func (a *Account) PositionStream() *stream.Stream[*Position] {
	if a.positions == nil {
		a.positions = stream.New[*Position]()
	}
	return a.positions
}

// Instrument returns the named instrument, creating it on first use.
func (a *Account) Instrument(name string) *market.Instrument {
	in, ok := a.Instruments[name]
	if !ok {
		in = market.NewInstrument(name)
		a.Instruments[name] = in
	}
	return in
}

// AddOrder admits o into the order history and, unless it is already
// terminal, into the working set. Ids must be unique across the working set.
func (a *Account) AddOrder(o *Order) error {
	if o.Id == "" {
		o.Id = a.NewId()
	}
	if _, exists := a.ActiveOrders[o.Id]; exists {
		return fmt.Errorf("order id %q already active", o.Id)
	}

	a.Orders = append(a.Orders, o)
	if !o.Status.Terminal() {
		a.ActiveOrders[o.Id] = o
	}
	a.OrderStream().Created(o.Clone())
	return nil
}

// UpdateOrder publishes the new state of o and drops it from the working set
// once it reaches a terminal status. When the working set holds a different
// copy under o's id that is already terminal, the update is ignored. An order
// no longer in the working set is not checked: its update is published as
// given.
func (a *Account) UpdateOrder(o *Order) {
	prev := o.Clone()
	if cur, ok := a.ActiveOrders[o.Id]; ok && cur != o {
		// A distinct terminal copy in the working set means the caller is
		// replaying an old snapshot; the lifecycle never moves backwards.
		if cur.Status.Terminal() {
			return
		}
		prev = cur.Clone()
		*cur = *o
		o = cur
	}
	if o.Status.Terminal() {
		delete(a.ActiveOrders, o.Id)
	}
	a.OrderStream().Updated(prev, o.Clone())
}

// RemoveOrder cancels the active order with the given id. Removing an
// unknown or already-cancelled order is a no-op.
func (a *Account) RemoveOrder(orderId string) {
	o, ok := a.ActiveOrders[orderId]
	if !ok {
		return
	}
	delete(a.ActiveOrders, orderId)
	o.Status = Cancelled
	a.OrderStream().Deleted(o.Clone())

	// A bracket parent takes its children down with it.
	for _, child := range o.Orders {
		a.RemoveOrder(child.Id)
	}
}

// OpenPosition nets the fill carried by o against the instrument's active
// position and returns the resulting active position, or nil when the fill
// closed flat. Exactly one position event is published per call.
func (a *Account) OpenPosition(o *Order) *Position {
	tx := o.Transaction
	if tx == nil {
		return nil
	}

	existing := a.ActivePositions[o.Name]
	if existing == nil {
		p := a.openFresh(o, tx.Price, tx.Volume, tx.Time)
		a.PositionStream().Created(p.Clone())
		a.addDeal(o, p, tx.Price, tx.Volume, tx.Time, "", 0)
		return p
	}

	prev := existing.Clone()
	var next *Position

	switch {
	case existing.Side == o.Side:
		next = a.increase(existing, o, tx)
	case tx.Volume == existing.Volume:
		a.closeFlat(existing, o, tx)
	case tx.Volume < existing.Volume:
		next = a.reduce(existing, o, tx)
	default:
		next = a.reverse(existing, o, tx)
	}

	if next == nil {
		a.PositionStream().Deleted(prev)
	} else {
		a.PositionStream().Updated(prev, next.Clone())
	}
	return next
}

func (a *Account) openFresh(o *Order, price, volume float64, at time.Time) *Position {
	p := &Position{
		Id:         a.NewId(),
		Name:       o.Name,
		Side:       o.Side,
		Volume:     volume,
		OpenPrices: []Fill{{Price: price, Volume: volume}},
		Time:       at,
	}
	p.Recalculate()
	a.ActivePositions[o.Name] = p
	return p
}

// increase merges the fill into the same-side position. The old position is
// archived against the new volume-weighted price; the realised amount stays
// on the record without touching Balance, since no exposure actually closed.
func (a *Account) increase(p *Position, o *Order, tx *Transaction) *Position {
	merged := append(append([]Fill(nil), p.OpenPrices...), Fill{Price: tx.Price, Volume: tx.Volume})

	next := &Position{
		Id:         a.NewId(),
		Name:       p.Name,
		Side:       p.Side,
		Volume:     p.Volume + tx.Volume,
		OpenPrices: merged,
		Time:       tx.Time,
	}
	next.Recalculate()

	a.cancelBrackets(p)
	p.realize(next.OpenPrice, p.Volume, tx.Time, ReasonIncrease)
	a.archive(p)

	a.ActivePositions[p.Name] = next
	a.addDeal(o, next, tx.Price, tx.Volume, tx.Time, ReasonIncrease, 0)
	return next
}

func (a *Account) closeFlat(p *Position, o *Order, tx *Transaction) {
	reason := closeReason(o)
	a.closeOut(p, tx.Price, p.Volume, tx.Time, reason)
	delete(a.ActivePositions, p.Name)
	a.addDeal(o, p, tx.Price, tx.Volume, tx.Time, reason, p.GainLoss)
}

// closeReason names why a flat close happened: a triggered bracket child
// reports as its stop-loss or take-profit role, anything else is a plain
// close.
func closeReason(o *Order) string {
	if o.Instruction == Brace {
		switch o.Type {
		case Limit:
			return ReasonTakeProfit
		case Stop, StopLimit:
			return ReasonStopLoss
		}
	}
	return ReasonClose
}

func (a *Account) reduce(p *Position, o *Order, tx *Transaction) *Position {
	remainder := &Position{
		Id:         a.NewId(),
		Name:       p.Name,
		Side:       p.Side,
		Volume:     p.Volume - tx.Volume,
		OpenPrices: p.trimLedger(p.Volume - tx.Volume),
		Time:       p.Time,
	}
	remainder.Recalculate()

	a.closeOut(p, tx.Price, tx.Volume, tx.Time, ReasonReduce)
	a.ActivePositions[p.Name] = remainder
	a.addDeal(o, remainder, tx.Price, tx.Volume, tx.Time, ReasonReduce, p.GainLoss)
	return remainder
}

func (a *Account) reverse(p *Position, o *Order, tx *Transaction) *Position {
	next := &Position{
		Id:         a.NewId(),
		Name:       p.Name,
		Side:       o.Side,
		Volume:     tx.Volume - p.Volume,
		OpenPrices: []Fill{{Price: tx.Price, Volume: tx.Volume - p.Volume}},
		Time:       tx.Time,
	}
	next.Recalculate()

	a.closeOut(p, tx.Price, p.Volume, tx.Time, ReasonReverse)
	a.ActivePositions[p.Name] = next
	a.addDeal(o, next, tx.Price, tx.Volume, tx.Time, ReasonReverse, p.GainLoss)
	return next
}

// closeOut realises P/L over closedVolume, credits the balance, cancels the
// position's brackets, and archives it.
func (a *Account) closeOut(p *Position, price, closedVolume float64, at time.Time, reason string) {
	a.cancelBrackets(p)
	a.Balance += p.realize(price, closedVolume, at, reason)
	a.archive(p)
}

func (a *Account) archive(p *Position) {
	a.Positions = append(a.Positions, p)
}

func (a *Account) cancelBrackets(p *Position) {
	for _, o := range p.Orders {
		a.RemoveOrder(o.Id)
	}
	p.Orders = nil
}

// ClosePosition closes the active position with the given id at the current
// top of book: longs close on bid, shorts on ask. Closing an unknown
// position is a no-op.
func (a *Account) ClosePosition(positionId string) {
	var p *Position
	for _, cand := range a.ActivePositions {
		if cand.Id == positionId {
			p = cand
			break
		}
	}
	if p == nil {
		return
	}

	last, ok := a.Instrument(p.Name).Last()
	if !ok {
		return
	}
	price := last.Bid
	if p.Side == Sell {
		price = last.Ask
	}

	prev := p.Clone()
	a.closeOut(p, price, p.Volume, last.Time, ReasonManual)
	delete(a.ActivePositions, p.Name)
	a.PositionStream().Deleted(prev)
	a.addDeal(nil, p, price, p.Volume, last.Time, ReasonManual, p.GainLoss)
}

// Recompute rebuilds Balance from realised history and refreshes every
// active position's mark against the latest tick. Increase archivals carry a
// bookkeeping GainLoss that was never realised, so they are skipped.
func (a *Account) Recompute() {
	balance := a.InitialBalance
	for _, p := range a.Positions {
		if p.Reason == ReasonIncrease {
			continue
		}
		balance += p.GainLoss
	}
	a.Balance = balance

	for _, p := range a.ActivePositions {
		if last, ok := a.Instrument(p.Name).Last(); ok {
			p.MarkToMarket(last.Last)
		}
	}
}

// EstimatedGainLoss is the mark-to-market of all active positions. It never
// mutates Balance.
func (a *Account) EstimatedGainLoss() float64 {
	var total float64
	for _, p := range a.ActivePositions {
		last, ok := a.Instrument(p.Name).Last()
		if !ok {
			continue
		}
		points := (last.Last - p.OpenPrice) * p.Side.Sign()
		total += points * p.Volume * market.ContractSize(p.Name)
	}
	return total
}

func (a *Account) addDeal(o *Order, p *Position, price, volume float64, at time.Time, reason string, gainLoss float64) {
	d := Deal{
		Id:         a.NewId(),
		PositionId: p.Id,
		Instrument: p.Name,
		Side:       p.Side,
		Volume:     volume,
		Price:      price,
		Time:       at,
		Reason:     reason,
		GainLoss:   gainLoss,
	}
	if o != nil {
		d.OrderId = o.Id
		d.Side = o.Side
	}
	a.Deals = append(a.Deals, d)
}
