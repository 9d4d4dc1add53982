package strategy

import (
	"context"
	"fmt"

	"github.com/rustyeddy/tradecore/broker"
	"github.com/rustyeddy/tradecore/market"
)

// OpenOnce submits a single market order the first time it sees a tick for
// the configured instrument. It's meant as a wiring test.
type OpenOnce struct {
	Instrument string
	Side       broker.Side
	Volume     float64

	opened bool
}

func (s *OpenOnce) OnPoint(ctx context.Context, gw broker.Gateway, p market.Point) error {
	if s.opened || p.Instrument != s.Instrument {
		return nil
	}
	if s.Volume <= 0 {
		return fmt.Errorf("open-once: volume must be positive")
	}

	resp := gw.CreateOrders(&broker.Order{
		Name:   s.Instrument,
		Side:   s.Side,
		Type:   broker.Market,
		Volume: s.Volume,
	})
	if err := resp.Err(); err != nil {
		return err
	}
	s.opened = true
	return nil
}
