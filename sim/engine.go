// Package sim is the local broker: a deterministic matching engine that
// replays merged tick streams against the account and implements the same
// gateway contract the live adapters do.
package sim

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rustyeddy/tradecore/broker"
	"github.com/rustyeddy/tradecore/feed"
	"github.com/rustyeddy/tradecore/journal"
	"github.com/rustyeddy/tradecore/market"
	"github.com/rustyeddy/tradecore/stream"
)

// disconnectGrace bounds how long Disconnect waits for the feed loop.
const disconnectGrace = 2 * time.Second

// Options configures the simulator.
type Options struct {
	// Speed is the virtual-clock period between ticks. Default 100ms.
	Speed time.Duration
	// Source is the directory of tick files, one file per instrument.
	Source string
	// Journal receives every deal and equity snapshot. Default journal.Nop.
	Journal journal.Journal
}

// Engine implements broker.Gateway against local tick files. All account
// mutation and matching is serialized under one mutex. Order and position
// events, and the errors raised while admitting orders, are published while
// that mutex is held, so their handlers must not call back into the gateway.
// Point events are published after it is released, so point handlers may
// submit orders.
type Engine struct {
	mu   sync.Mutex
	acct *broker.Account
	opts Options

	subscribed map[string]*market.Instrument
	status     broker.ConnStatus
	sched      *feed.Scheduler
	cancel     context.CancelFunc
	done       chan struct{}

	journaled int // deals already flushed to the journal

	points *stream.Stream[market.Point]
	errors *stream.Stream[*broker.Error]
}

func New(acct *broker.Account, opts Options) *Engine {
	if opts.Speed <= 0 {
		opts.Speed = feed.DefaultSpeed
	}
	if opts.Journal == nil {
		opts.Journal = journal.Nop{}
	}
	return &Engine{
		acct:       acct,
		opts:       opts,
		subscribed: make(map[string]*market.Instrument),
		points:     stream.New[market.Point](),
		errors:     stream.New[*broker.Error](),
	}
}

// Account returns the account this engine mutates.
func (e *Engine) Account() *broker.Account { return e.acct }

func (e *Engine) PointStream() *stream.Stream[market.Point] { return e.points }
func (e *Engine) OrderStream() *stream.Stream[*broker.Order] {
	return e.acct.OrderStream()
}
func (e *Engine) PositionStream() *stream.Stream[*broker.Position] {
	return e.acct.PositionStream()
}
func (e *Engine) ErrorStream() *stream.Stream[*broker.Error] { return e.errors }

var _ broker.Gateway = (*Engine)(nil)

// Connect starts the virtual clock over the subscribed instruments' tick
// files. It is idempotent: an existing session is torn down first, keeping
// the subscription set intact.
func (e *Engine) Connect(ctx context.Context) broker.Response[broker.ConnStatus] {
	e.teardown(false)

	e.mu.Lock()
	defer e.mu.Unlock()

	sources := make(map[string]feed.Source)
	for name := range e.subscribed {
		src, err := e.sourceFor(name)
		if err != nil {
			cerr := broker.Connectionf("connect: %v", err)
			e.errors.Created(cerr)
			return broker.Fail[broker.ConnStatus](cerr)
		}
		sources[name] = src
	}

	e.sched = feed.NewScheduler(sources, e.opts.Speed)

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	e.status = broker.Connected

	go e.run(runCtx, e.sched, e.done)

	return broker.OK(broker.Connected)
}

func (e *Engine) run(ctx context.Context, sched *feed.Scheduler, done chan struct{}) {
	defer close(done)
	err := sched.Run(ctx, e.OnPoint)
	if err != nil && ctx.Err() == nil {
		e.errors.Created(broker.Connectionf("feed stopped: %v", err))
	}
}

// Disconnect cancels the feed loop, waits for it up to a bounded grace
// period, and releases every source handle and subscription. Safe to call
// when already disconnected.
func (e *Engine) Disconnect() broker.Response[broker.ConnStatus] {
	e.teardown(true)
	return broker.OK(broker.Disconnected)
}

func (e *Engine) teardown(clearSubs bool) {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.sched = nil
	e.status = broker.Disconnected
	if clearSubs {
		e.subscribed = make(map[string]*market.Instrument)
	}
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(disconnectGrace):
		}
	}
}

// Subscribe adds an instrument to the active feed. While connected, its
// tick source joins the running merge.
func (e *Engine) Subscribe(in *market.Instrument) broker.Response[broker.ConnStatus] {
	if in == nil || in.Name == "" {
		return broker.Fail[broker.ConnStatus](broker.Validationf("subscribe: instrument required"))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.subscribed[in.Name] = in
	e.acct.Instruments[in.Name] = in

	if e.status == broker.Connected && e.sched != nil {
		src, err := e.sourceFor(in.Name)
		if err != nil {
			return broker.Fail[broker.ConnStatus](broker.Connectionf("subscribe: %v", err))
		}
		e.sched.Add(in.Name, src)
	}
	return broker.OK(e.status)
}

// Unsubscribe removes the instrument's source from the merge.
func (e *Engine) Unsubscribe(in *market.Instrument) broker.Response[broker.ConnStatus] {
	if in == nil || in.Name == "" {
		return broker.Fail[broker.ConnStatus](broker.Validationf("unsubscribe: instrument required"))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.subscribed, in.Name)
	if e.sched != nil {
		e.sched.Remove(in.Name)
	}
	return broker.OK(e.status)
}

// Wait blocks until the current feed session drains or ctx is done. It
// returns immediately when no session is running.
func (e *Engine) Wait(ctx context.Context) error {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscriptions returns the names of the instruments on the active feed.
func (e *Engine) Subscriptions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.subscribed))
	for name := range e.subscribed {
		names = append(names, name)
	}
	return names
}

// Connected reports the current connection status.
func (e *Engine) Connected() broker.ConnStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *Engine) sourceFor(name string) (feed.Source, error) {
	for _, path := range []string{
		filepath.Join(e.opts.Source, name),
		filepath.Join(e.opts.Source, name+".xz"),
	} {
		if _, err := os.Stat(path); err == nil {
			src := feed.NewFileSource(path)
			src.Instrument = name
			src.OnSkip = func(line string, err error) {
				e.errors.Created(broker.Parsef("tick %q: %v", line, err))
			}
			return src, nil
		}
	}
	return nil, fmt.Errorf("no tick file for %q under %q", name, e.opts.Source)
}
