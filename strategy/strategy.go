// Package strategy defines the contract strategy code implements and a
// runner that drives it from a gateway's point stream. Strategies observe
// account state via streams and request mutations through order submission;
// they work identically against the simulator and a live gateway.
package strategy

import (
	"context"
	"fmt"
	"strings"

	"github.com/rustyeddy/tradecore/broker"
	"github.com/rustyeddy/tradecore/market"
	"github.com/rustyeddy/tradecore/stream"
)

// Strategy is the minimal interface strategy code must implement. OnPoint
// is called once per merged tick.
type Strategy interface {
	OnPoint(ctx context.Context, gw broker.Gateway, p market.Point) error
}

var registry = make(map[string]Strategy)

func Register(name string, s Strategy) {
	registry[name] = s
}

func ByName(name string) (Strategy, error) {
	s, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
	return s, nil
}

// Runner feeds a strategy from a gateway's point stream. Strategy errors go
// to the gateway's error stream; they never stop the feed.
type Runner struct {
	Gateway  broker.Gateway
	Strategy Strategy

	sub *stream.Subscription
}

// Start subscribes the strategy to the point stream. The runner keeps
// delivering until Stop.
func (r *Runner) Start(ctx context.Context) {
	r.sub = r.Gateway.PointStream().Subscribe(func(msg stream.Message[market.Point]) {
		if err := r.Strategy.OnPoint(ctx, r.Gateway, msg.Next); err != nil {
			r.Gateway.ErrorStream().Created(broker.Validationf("strategy: %v", err))
		}
	})
}

// Stop releases the point subscription; the strategy sees no further ticks.
func (r *Runner) Stop() {
	r.sub.Close()
}

func init() {
	Register("noop", Noop{})
}

// Noop does nothing. It exists so wiring can be exercised end to end.
type Noop struct{}

func (Noop) OnPoint(context.Context, broker.Gateway, market.Point) error { return nil }
