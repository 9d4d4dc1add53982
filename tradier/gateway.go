package tradier

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rustyeddy/tradecore/broker"
	"github.com/rustyeddy/tradecore/market"
	"github.com/rustyeddy/tradecore/stream"
)

// Gateway implements broker.Gateway against the Tradier REST and streaming
// APIs. It feeds the same streams the simulator does, so strategies cannot
// tell the two apart.
type Gateway struct {
	client *Client
	acct   *broker.Account

	mu        sync.Mutex
	status    broker.ConnStatus
	session   *marketSession
	symbols   map[string]*market.Instrument
	brokerIds map[string]string // core order id -> broker-assigned id
	cancel    context.CancelFunc
	done      chan struct{}

	points *stream.Stream[market.Point]
	errors *stream.Stream[*broker.Error]
}

var _ broker.Gateway = (*Gateway)(nil)

func NewGateway(client *Client, acct *broker.Account) *Gateway {
	return &Gateway{
		client:    client,
		acct:      acct,
		symbols:   make(map[string]*market.Instrument),
		brokerIds: make(map[string]string),
		points:    stream.New[market.Point](),
		errors:    stream.New[*broker.Error](),
	}
}

func (g *Gateway) PointStream() *stream.Stream[market.Point]  { return g.points }
func (g *Gateway) OrderStream() *stream.Stream[*broker.Order] { return g.acct.OrderStream() }
func (g *Gateway) ErrorStream() *stream.Stream[*broker.Error] { return g.errors }

// Connect opens a fresh streaming session. Idempotent: any prior session is
// torn down first, keeping the subscription set.
func (g *Gateway) Connect(ctx context.Context) broker.Response[broker.ConnStatus] {
	g.teardown(false)

	sessionID, err := g.client.CreateMarketSession(ctx)
	if err != nil {
		cerr := broker.Connectionf("connect: %v", err)
		g.errors.Created(cerr)
		return broker.Fail[broker.ConnStatus](cerr)
	}

	session, err := dialMarketSession(ctx, sessionID, g.points, g.errors)
	if err != nil {
		cerr := broker.Connectionf("connect: dial: %v", err)
		g.errors.Created(cerr)
		return broker.Fail[broker.ConnStatus](cerr)
	}

	g.mu.Lock()
	g.session = session
	g.status = broker.Connected

	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		session.readLoop(runCtx)
	}(g.done)

	symbols := g.symbolsLocked()
	g.mu.Unlock()

	if len(symbols) > 0 {
		if err := session.subscribe(symbols); err != nil {
			cerr := broker.Connectionf("connect: subscribe: %v", err)
			g.errors.Created(cerr)
			return broker.Fail[broker.ConnStatus](cerr)
		}
	}

	return broker.OK(broker.Connected)
}

// Disconnect closes the socket, waits for the read loop, and clears the
// subscription set. Safe on an already-disconnected gateway.
func (g *Gateway) Disconnect() broker.Response[broker.ConnStatus] {
	g.teardown(true)
	return broker.OK(broker.Disconnected)
}

func (g *Gateway) teardown(clearSubs bool) {
	g.mu.Lock()
	session, cancel, done := g.session, g.cancel, g.done
	g.session, g.cancel, g.done = nil, nil, nil
	g.status = broker.Disconnected
	if clearSubs {
		g.symbols = make(map[string]*market.Instrument)
	}
	g.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if session != nil {
		session.close()
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	}
}

// Subscribe adds the instrument to the live feed. The watch list is resent
// wholesale, since the stream replaces it on every control frame.
func (g *Gateway) Subscribe(in *market.Instrument) broker.Response[broker.ConnStatus] {
	if in == nil || in.Name == "" {
		return broker.Fail[broker.ConnStatus](broker.Validationf("subscribe: instrument required"))
	}

	g.mu.Lock()
	g.symbols[in.Name] = in
	g.acct.Instruments[in.Name] = in
	session := g.session
	symbols := g.symbolsLocked()
	status := g.status
	g.mu.Unlock()

	if session != nil {
		if err := session.subscribe(symbols); err != nil {
			return broker.Fail[broker.ConnStatus](broker.Connectionf("subscribe: %v", err))
		}
	}
	return broker.OK(status)
}

// Unsubscribe removes the instrument from the live feed.
func (g *Gateway) Unsubscribe(in *market.Instrument) broker.Response[broker.ConnStatus] {
	if in == nil || in.Name == "" {
		return broker.Fail[broker.ConnStatus](broker.Validationf("unsubscribe: instrument required"))
	}

	g.mu.Lock()
	delete(g.symbols, in.Name)
	session := g.session
	symbols := g.symbolsLocked()
	status := g.status
	g.mu.Unlock()

	if session != nil {
		if err := session.subscribe(symbols); err != nil {
			return broker.Fail[broker.ConnStatus](broker.Connectionf("unsubscribe: %v", err))
		}
	}
	return broker.OK(status)
}

func (g *Gateway) symbolsLocked() []string {
	out := make([]string, 0, len(g.symbols))
	for name := range g.symbols {
		out = append(out, name)
	}
	return out
}

// GetAccount refreshes balance from the authoritative balances endpoint.
func (g *Gateway) GetAccount(criteria broker.AccountCriteria) broker.Response[*broker.Account] {
	descriptor := criteria.Descriptor
	if descriptor == "" {
		descriptor = g.acct.Descriptor
	}

	var out struct {
		Balances struct {
			TotalEquity float64 `json:"total_equity"`
			TotalCash   float64 `json:"total_cash"`
		} `json:"balances"`
	}
	path := fmt.Sprintf("/accounts/%s/balances", url.PathEscape(descriptor))
	if err := g.client.get(context.Background(), path, nil, &out); err != nil {
		return broker.Fail[*broker.Account](broker.Connectionf("get account: %v", err))
	}

	g.mu.Lock()
	g.acct.Balance = out.Balances.TotalCash
	g.mu.Unlock()
	return broker.OK(g.acct)
}

// CreateOrders submits each order and records the broker-assigned id in the
// gateway against the order's core id, where DeleteOrders looks it up. The
// order itself keeps its core id; the broker id is not set on it.
func (g *Gateway) CreateOrders(orders ...*broker.Order) broker.Response[[]*broker.Order] {
	var errs []*broker.Error
	for _, o := range orders {
		if err := g.createOrder(o); err != nil {
			errs = append(errs, err)
		}
	}
	return broker.Response[[]*broker.Order]{Data: orders, Errors: errs}
}

func (g *Gateway) createOrder(o *broker.Order) *broker.Error {
	params := url.Values{}
	params.Set("class", "equity")
	params.Set("symbol", o.Name)
	params.Set("side", wireSide(o.Side))
	params.Set("quantity", strconv.FormatFloat(o.Volume, 'f', -1, 64))
	params.Set("type", wireType(o.Type))
	params.Set("duration", "day")
	switch o.Type {
	case broker.Limit:
		params.Set("price", strconv.FormatFloat(o.Price, 'f', -1, 64))
	case broker.Stop:
		params.Set("stop", strconv.FormatFloat(o.Price, 'f', -1, 64))
	case broker.StopLimit:
		params.Set("price", strconv.FormatFloat(o.Price, 'f', -1, 64))
		params.Set("stop", strconv.FormatFloat(o.Price, 'f', -1, 64))
	}

	var out struct {
		Order struct {
			ID     int    `json:"id"`
			Status string `json:"status"`
		} `json:"order"`
	}
	path := fmt.Sprintf("/accounts/%s/orders", url.PathEscape(g.acct.Descriptor))
	if err := g.client.post(context.Background(), path, params, &out); err != nil {
		o.Status = broker.Rejected
		verr := broker.Connectionf("create order: %v", err)
		g.errors.Created(verr)
		return verr
	}

	o.Status = broker.Placed
	if err := g.acct.AddOrder(o); err != nil {
		return broker.Validationf("%v", err)
	}
	g.mu.Lock()
	g.brokerIds[o.Id] = strconv.Itoa(out.Order.ID)
	g.mu.Unlock()
	return nil
}

// DeleteOrders cancels each order at the broker. Unknown orders are a
// no-op, matching the simulator.
func (g *Gateway) DeleteOrders(orders ...*broker.Order) broker.Response[[]*broker.Order] {
	var errs []*broker.Error
	for _, o := range orders {
		if o == nil {
			continue
		}
		g.mu.Lock()
		brokerID, ok := g.brokerIds[o.Id]
		g.mu.Unlock()
		if !ok {
			continue
		}

		path := fmt.Sprintf("/accounts/%s/orders/%s",
			url.PathEscape(g.acct.Descriptor), url.PathEscape(brokerID))
		if err := g.client.delete(context.Background(), path, nil); err != nil {
			errs = append(errs, broker.Connectionf("delete order %s: %v", o.Id, err))
			continue
		}
		g.acct.RemoveOrder(o.Id)
	}
	return broker.Response[[]*broker.Order]{Data: orders, Errors: errs}
}

// GetPoints returns the most recent count points of the account's series
// for the instrument. The adapter calls no REST history endpoint, and
// streamed quotes go to PointStream without being appended to that series.
func (g *Gateway) GetPoints(name string, count int) broker.Response[[]market.Point] {
	g.mu.Lock()
	defer g.mu.Unlock()

	in, ok := g.acct.Instruments[name]
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

// GetDom is not available on this adapter.
func (g *Gateway) GetDom(name string) broker.Response[*broker.Dom] {
	return broker.Fail[*broker.Dom](broker.NotImplemented("tradier: GetDom"))
}

// GetOptions fetches the expiration list for an underlying.
func (g *Gateway) GetOptions(name string) broker.Response[*broker.OptionChain] {
	params := url.Values{}
	params.Set("symbol", name)

	var out struct {
		Expirations struct {
			Date []string `json:"date"`
		} `json:"expirations"`
	}
	if err := g.client.get(context.Background(), "/markets/options/expirations", params, &out); err != nil {
		return broker.Fail[*broker.OptionChain](broker.Connectionf("get options: %v", err))
	}

	return broker.OK(&broker.OptionChain{
		Underlying:  name,
		Expirations: out.Expirations.Date,
	})
}

// GetPositions refreshes positions from the authoritative source.
func (g *Gateway) GetPositions() broker.Response[[]*broker.Position] {
	var out struct {
		Positions struct {
			Position []wirePosition `json:"position"`
		} `json:"positions"`
	}
	path := fmt.Sprintf("/accounts/%s/positions", url.PathEscape(g.acct.Descriptor))
	if err := g.client.get(context.Background(), path, nil, &out); err != nil {
		return broker.Fail[[]*broker.Position](broker.Connectionf("get positions: %v", err))
	}

	positions := make([]*broker.Position, 0, len(out.Positions.Position))
	for _, w := range out.Positions.Position {
		positions = append(positions, positionFromWire(w))
	}
	return broker.OK(positions)
}

// GetOrders refreshes the working orders from the authoritative source.
func (g *Gateway) GetOrders() broker.Response[[]*broker.Order] {
	var out struct {
		Orders struct {
			Order []wireOrder `json:"order"`
		} `json:"orders"`
	}
	path := fmt.Sprintf("/accounts/%s/orders", url.PathEscape(g.acct.Descriptor))
	if err := g.client.get(context.Background(), path, nil, &out); err != nil {
		return broker.Fail[[]*broker.Order](broker.Connectionf("get orders: %v", err))
	}

	orders := make([]*broker.Order, 0, len(out.Orders.Order))
	for _, w := range out.Orders.Order {
		orders = append(orders, orderFromWire(w))
	}
	return broker.OK(orders)
}
