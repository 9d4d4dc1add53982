package broker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradecore/market"
	"github.com/rustyeddy/tradecore/stream"
)

var t0 = time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)

func filled(id, name string, side Side, volume, price float64, at time.Time) *Order {
	return &Order{
		Id:     id,
		Name:   name,
		Side:   side,
		Type:   Market,
		Volume: volume,
		Status: Filled,
		Time:   at,
		Transaction: &Transaction{
			Instrument: name,
			Price:      price,
			Volume:     volume,
			Time:       at,
		},
	}
}

func TestOpenFreshPosition(t *testing.T) {
	a := NewAccount("TEST", 50000)

	p := a.OpenPosition(filled("o1", "ES", Buy, 1, 101, t0))
	require.NotNil(t, p)

	assert.Equal(t, Buy, p.Side)
	assert.Equal(t, 1.0, p.Volume)
	assert.Equal(t, 101.0, p.OpenPrice)
	assert.True(t, p.Active())
	assert.Equal(t, 50000.0, a.Balance)
	assert.Len(t, a.ActivePositions, 1)
	assert.Empty(t, a.Positions)
}

func TestIncreaseAveragesOpenPrice(t *testing.T) {
	a := NewAccount("TEST", 50000)

	a.OpenPosition(filled("o1", "ES", Buy, 1, 101, t0))
	p := a.OpenPosition(filled("o2", "ES", Buy, 1, 103, t0.Add(time.Second)))
	require.NotNil(t, p)

	assert.Equal(t, 2.0, p.Volume)
	assert.Equal(t, 102.0, p.OpenPrice)
	assert.Len(t, a.ActivePositions, 1)

	// The previous position is archived against the new averaged price but
	// the balance does not move: nothing actually closed.
	require.Len(t, a.Positions, 1)
	old := a.Positions[0]
	assert.Equal(t, ReasonIncrease, old.Reason)
	assert.Equal(t, 102.0, old.ClosePrice)
	assert.Equal(t, 50000.0, a.Balance)
}

func TestCloseFlat(t *testing.T) {
	a := NewAccount("TEST", 50000)

	a.OpenPosition(filled("o1", "ES", Buy, 2, 102, t0))
	p := a.OpenPosition(filled("o2", "ES", Sell, 2, 105, t0.Add(time.Second)))

	assert.Nil(t, p)
	assert.Empty(t, a.ActivePositions)
	assert.InDelta(t, 50006.0, a.Balance, 1e-9)

	require.Len(t, a.Positions, 1)
	closed := a.Positions[0]
	assert.Equal(t, 105.0, closed.ClosePrice)
	assert.InDelta(t, 6.0, closed.GainLoss, 1e-9)
}

func TestPartialReduce(t *testing.T) {
	a := NewAccount("TEST", 50000)

	a.OpenPosition(filled("o1", "ES", Buy, 3, 100, t0))
	p := a.OpenPosition(filled("o2", "ES", Sell, 1, 104, t0.Add(time.Second)))
	require.NotNil(t, p)

	assert.Equal(t, Buy, p.Side)
	assert.Equal(t, 2.0, p.Volume)
	assert.Equal(t, 100.0, p.OpenPrice, "trim keeps the volume-weighted open")

	// Realised only on the volume that actually closed.
	assert.InDelta(t, 50004.0, a.Balance, 1e-9)
	require.Len(t, a.Positions, 1)
	assert.Equal(t, ReasonReduce, a.Positions[0].Reason)
}

func TestReverse(t *testing.T) {
	a := NewAccount("TEST", 50000)

	a.OpenPosition(filled("o1", "ES", Buy, 2, 100, t0))
	p := a.OpenPosition(filled("o2", "ES", Sell, 5, 105, t0.Add(time.Second)))
	require.NotNil(t, p)

	assert.Equal(t, Sell, p.Side)
	assert.Equal(t, 3.0, p.Volume)
	assert.Equal(t, 105.0, p.OpenPrice)
	assert.InDelta(t, 50010.0, a.Balance, 1e-9)

	require.Len(t, a.Positions, 1)
	assert.Equal(t, ReasonReverse, a.Positions[0].Reason)
}

func TestAtMostOneActivePositionPerInstrument(t *testing.T) {
	a := NewAccount("TEST", 50000)

	fills := []*Order{
		filled("o1", "ES", Buy, 1, 100, t0),
		filled("o2", "ES", Buy, 2, 101, t0),
		filled("o3", "ES", Sell, 1, 102, t0),
		filled("o4", "NQ", Sell, 1, 15000, t0),
		filled("o5", "ES", Sell, 5, 103, t0),
	}
	for _, o := range fills {
		a.OpenPosition(o)
		for name, p := range a.ActivePositions {
			assert.Equal(t, name, p.Name, "positions keyed by their own instrument")
			assert.True(t, p.Active())
		}
	}
	assert.Len(t, a.ActivePositions, 2)
}

func TestOnePositionDeltaPerFill(t *testing.T) {
	a := NewAccount("TEST", 50000)

	var deltas int
	sub := a.PositionStream().Subscribe(func(stream.Message[*Position]) { deltas++ })
	defer sub.Close()

	a.OpenPosition(filled("o1", "ES", Buy, 1, 100, t0))  // create
	a.OpenPosition(filled("o2", "ES", Buy, 1, 102, t0))  // increase
	a.OpenPosition(filled("o3", "ES", Sell, 1, 103, t0)) // reduce
	a.OpenPosition(filled("o4", "ES", Sell, 4, 104, t0)) // reverse
	a.OpenPosition(filled("o5", "ES", Buy, 3, 105, t0))  // flat

	assert.Equal(t, 5, deltas)
}

func TestAddOrderIdCollision(t *testing.T) {
	a := NewAccount("TEST", 50000)

	first := &Order{Id: "dup", Name: "ES", Side: Buy, Type: Limit, Price: 99, Volume: 1, Status: Placed}
	require.NoError(t, a.AddOrder(first))

	second := &Order{Id: "dup", Name: "ES", Side: Sell, Type: Limit, Price: 101, Volume: 1, Status: Placed}
	assert.Error(t, a.AddOrder(second))
	assert.Len(t, a.ActiveOrders, 1)
}

func TestRemoveOrderCancelsChildren(t *testing.T) {
	a := NewAccount("TEST", 50000)

	child := &Order{Id: "child", Name: "ES", Side: Sell, Type: Stop, Price: 95, Volume: 1, Status: Placed}
	parent := &Order{Id: "parent", Name: "ES", Side: Sell, Type: Limit, Price: 110, Volume: 1, Status: Placed, Orders: []*Order{child}}

	require.NoError(t, a.AddOrder(parent))
	require.NoError(t, a.AddOrder(child))

	a.RemoveOrder("parent")
	assert.Empty(t, a.ActiveOrders)
	assert.Equal(t, Cancelled, parent.Status)
	assert.Equal(t, Cancelled, child.Status)

	// Removing again is a no-op.
	a.RemoveOrder("parent")
	a.RemoveOrder("never-existed")
}

func TestUpdateOrderTerminalLeavesWorkingSet(t *testing.T) {
	a := NewAccount("TEST", 50000)

	o := &Order{Id: "o1", Name: "ES", Side: Buy, Type: Limit, Price: 99, Volume: 1, Status: Placed}
	require.NoError(t, a.AddOrder(o))

	o.Status = Filled
	a.UpdateOrder(o)
	assert.Empty(t, a.ActiveOrders)
	assert.Equal(t, Filled, o.Status)
}

func TestRecomputeSkipsIncreaseArchives(t *testing.T) {
	a := NewAccount("TEST", 50000)

	a.OpenPosition(filled("o1", "ES", Buy, 1, 101, t0))
	a.OpenPosition(filled("o2", "ES", Buy, 1, 103, t0)) // archive via increase
	a.OpenPosition(filled("o3", "ES", Sell, 2, 105, t0))

	balance := a.Balance
	a.Recompute()
	assert.InDelta(t, balance, a.Balance, 1e-9)
	assert.InDelta(t, 50006.0, a.Balance, 1e-9)
}

func TestClosePositionManual(t *testing.T) {
	a := NewAccount("TEST", 50000)

	in := a.Instrument("ES")
	in.Append(market.Point{Instrument: "ES", Time: t0, Bid: 104, Ask: 105, Last: 105})

	p := a.OpenPosition(filled("o1", "ES", Buy, 1, 101, t0))
	require.NotNil(t, p)

	a.ClosePosition(p.Id)
	assert.Empty(t, a.ActivePositions)
	// Longs close on the bid.
	assert.InDelta(t, 50003.0, a.Balance, 1e-9)
	require.Len(t, a.Positions, 1)
	assert.Equal(t, ReasonManual, a.Positions[0].Reason)

	// Unknown ids are a no-op.
	a.ClosePosition("nope")
	assert.InDelta(t, 50003.0, a.Balance, 1e-9)
}

func TestEstimatedGainLossDoesNotTouchBalance(t *testing.T) {
	a := NewAccount("TEST", 50000)

	in := a.Instrument("ES")
	in.Append(market.Point{Instrument: "ES", Time: t0, Bid: 104, Ask: 105, Last: 105})

	a.OpenPosition(filled("o1", "ES", Buy, 2, 101, t0))

	assert.InDelta(t, 8.0, a.EstimatedGainLoss(), 1e-9)
	assert.Equal(t, 50000.0, a.Balance)
}

func TestDealsAudit(t *testing.T) {
	a := NewAccount("TEST", 50000)

	a.OpenPosition(filled("o1", "ES", Buy, 1, 100, t0))
	a.OpenPosition(filled("o2", "ES", Sell, 1, 103, t0))

	require.Len(t, a.Deals, 2)
	assert.Equal(t, "o1", a.Deals[0].OrderId)
	assert.Equal(t, "", a.Deals[0].Reason)
	assert.Equal(t, ReasonClose, a.Deals[1].Reason)
	assert.InDelta(t, 3.0, a.Deals[1].GainLoss, 1e-9)
}
