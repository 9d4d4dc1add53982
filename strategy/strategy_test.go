package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradecore/broker"
	"github.com/rustyeddy/tradecore/market"
	"github.com/rustyeddy/tradecore/sim"
)

func TestRegistry(t *testing.T) {
	s, err := ByName("noop")
	require.NoError(t, err)
	assert.NotNil(t, s)

	_, err = ByName("does-not-exist")
	assert.Error(t, err)
}

func TestOpenOnceOverSimulator(t *testing.T) {
	acct := broker.NewAccount("SIM-TEST", 50000)
	engine := sim.New(acct, sim.Options{})

	r := &Runner{
		Gateway:  engine,
		Strategy: &OpenOnce{Instrument: "ES", Side: broker.Buy, Volume: 1},
	}
	r.Start(context.Background())
	defer r.Stop()

	t0 := time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)
	engine.OnPoint(market.Point{Instrument: "ES", Time: t0, Bid: 100, Ask: 101, Last: 101})
	engine.OnPoint(market.Point{Instrument: "ES", Time: t0.Add(time.Second), Bid: 102, Ask: 103, Last: 103})

	p := acct.ActivePositions["ES"]
	require.NotNil(t, p)
	assert.Equal(t, 1.0, p.Volume, "open-once must not stack positions")
	assert.Equal(t, 101.0, p.OpenPrice)
}

func TestNoop(t *testing.T) {
	assert.NoError(t, Noop{}.OnPoint(context.Background(), nil, market.Point{}))
}
