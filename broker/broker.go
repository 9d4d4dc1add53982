package broker

import (
	"context"

	"github.com/rustyeddy/tradecore/market"
	"github.com/rustyeddy/tradecore/stream"
)

// ConnStatus is the connection state of a gateway.
type ConnStatus int

const (
	Disconnected ConnStatus = iota
	Connecting
	Connected
)

func (s ConnStatus) String() string {
	switch s {
	case Connected:
		return "connected"
	case Connecting:
		return "connecting"
	}
	return "disconnected"
}

// AccountCriteria selects which account a gateway refreshes.
type AccountCriteria struct {
	Descriptor string
}

// DomLevel is one price level of a depth-of-market snapshot.
type DomLevel struct {
	Price float64
	Size  float64
}

// Dom is a depth-of-market snapshot for one instrument.
type Dom struct {
	Name string
	Bids []DomLevel
	Asks []DomLevel
}

// OptionChain lists the strikes and expirations available on an underlying.
type OptionChain struct {
	Underlying  string
	Expirations []string
	Strikes     []float64
}

// Gateway is the uniform broker contract. The simulator and every live
// adapter implement it, so strategy code runs unchanged against either.
//
// Connect is idempotent and internally disconnects first; Disconnect is safe
// on an already-disconnected gateway and releases every subscription, socket,
// and timer. Queries a given adapter cannot serve return a NotImplemented
// error in the envelope rather than panicking.
type Gateway interface {
	Connect(ctx context.Context) Response[ConnStatus]
	Disconnect() Response[ConnStatus]

	Subscribe(in *market.Instrument) Response[ConnStatus]
	Unsubscribe(in *market.Instrument) Response[ConnStatus]

	GetAccount(criteria AccountCriteria) Response[*Account]
	CreateOrders(orders ...*Order) Response[[]*Order]
	DeleteOrders(orders ...*Order) Response[[]*Order]

	GetPoints(name string, count int) Response[[]market.Point]
	GetDom(name string) Response[*Dom]
	GetOptions(name string) Response[*OptionChain]
	GetPositions() Response[[]*Position]
	GetOrders() Response[[]*Order]

	PointStream() *stream.Stream[market.Point]
	OrderStream() *stream.Stream[*Order]
	ErrorStream() *stream.Stream[*Error]
}
