package feed

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/tradecore/market"
)

// DefaultSpeed is the virtual-clock period between emitted ticks.
const DefaultSpeed = 100 * time.Millisecond

// head is the one-element look-ahead kept per source.
type head struct {
	name  string
	src   Source
	point market.Point
	ok    bool
}

// Scheduler merges per-instrument tick sources into a single flow ordered by
// (Time, Name) and paced at one tick per Speed period. Sources can be
// removed mid-run (per-instrument unsubscribe); cancelling the context
// releases every source handle.
type Scheduler struct {
	Speed time.Duration

	mu    sync.Mutex
	heads []*head
}

func NewScheduler(sources map[string]Source, speed time.Duration) *Scheduler {
	if speed <= 0 {
		speed = DefaultSpeed
	}
	s := &Scheduler{Speed: speed}
	for name, src := range sources {
		s.heads = append(s.heads, &head{name: name, src: src})
	}
	sort.Slice(s.heads, func(i, j int) bool { return s.heads[i].name < s.heads[j].name })
	return s
}

// Add joins a new source into the merge. Safe while Run is in flight.
func (s *Scheduler) Add(name string, src Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.heads {
		if h.name == name {
			return
		}
	}
	s.heads = append(s.heads, &head{name: name, src: src})
	sort.Slice(s.heads, func(i, j int) bool { return s.heads[i].name < s.heads[j].name })
}

// Remove drops the named source from the merge and closes it.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, h := range s.heads {
		if h.name == name {
			h.src.Close()
			s.heads = append(s.heads[:i], s.heads[i+1:]...)
			return
		}
	}
}

// Run emits merged ticks until every source is drained or ctx is cancelled.
// Each timer period emits exactly one tick; the minimum Time wins, and on
// equal times the lexicographically smallest instrument name goes first. All
// source handles are released before Run returns.
func (s *Scheduler) Run(ctx context.Context, emit func(market.Point)) error {
	defer s.closeAll()

	ticker := time.NewTicker(s.Speed)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p, ok, err := s.pop()
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			emit(p)
		}
	}
}

// pop primes look-aheads, picks the winning head, and advances only that
// source.
func (s *Scheduler) pop() (market.Point, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Prime every empty look-ahead, dropping drained sources.
	live := s.heads[:0]
	for _, h := range s.heads {
		if !h.ok {
			p, ok, err := h.src.Next()
			if err != nil {
				return market.Point{}, false, err
			}
			if !ok {
				h.src.Close()
				continue
			}
			h.point, h.ok = p, true
		}
		live = append(live, h)
	}
	s.heads = live

	if len(s.heads) == 0 {
		return market.Point{}, false, nil
	}

	// heads is kept sorted by name, so the first strictly-earlier head wins
	// and name order breaks time ties.
	win := s.heads[0]
	for _, h := range s.heads[1:] {
		if h.point.Time.Before(win.point.Time) {
			win = h
		}
	}

	win.ok = false
	return win.point, true, nil
}

func (s *Scheduler) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.heads {
		h.src.Close()
	}
	s.heads = nil
}
