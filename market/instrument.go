package market

import "time"

// InstrumentType classifies what kind of contract an instrument is.
type InstrumentType int

const (
	Equity InstrumentType = iota
	Future
	Option
	FX
	Crypto
)

func (t InstrumentType) String() string {
	switch t {
	case Equity:
		return "Equity"
	case Future:
		return "Future"
	case Option:
		return "Option"
	case FX:
		return "FX"
	case Crypto:
		return "Crypto"
	}
	return "Unknown"
}

// Instrument owns the tick history for one tradable symbol plus the derived
// time-bucketed aggregates. Points arrive in non-decreasing time order from
// the feed; Append keeps PointGroups current as each tick lands.
type Instrument struct {
	Name      string
	Exchange  string
	Type      InstrumentType
	TimeFrame time.Duration
	Basis     string // underlying symbol for derivatives

	Points      []Point
	PointGroups []PointGroup
}

// PointGroup aggregates the points of one TimeFrame bucket, OHLC on Last.
type PointGroup struct {
	Time   time.Time // bucket open
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Count  int
}

// NewInstrument returns an instrument with the given name and a one minute
// aggregation bucket.
func NewInstrument(name string) *Instrument {
	return &Instrument{
		Name:      name,
		TimeFrame: time.Minute,
	}
}

// Last returns the most recent point and whether one exists.
func (in *Instrument) Last() (Point, bool) {
	if len(in.Points) == 0 {
		return Point{}, false
	}
	return in.Points[len(in.Points)-1], true
}

// Append adds p to the tick series and folds it into the current PointGroup,
// opening a new bucket when p crosses the TimeFrame boundary.
func (in *Instrument) Append(p Point) {
	in.Points = append(in.Points, p)

	tf := in.TimeFrame
	if tf <= 0 {
		tf = time.Minute
	}
	bucket := p.Time.Truncate(tf)

	n := len(in.PointGroups)
	if n == 0 || !in.PointGroups[n-1].Time.Equal(bucket) {
		in.PointGroups = append(in.PointGroups, PointGroup{
			Time:   bucket,
			Open:   p.Last,
			High:   p.Last,
			Low:    p.Last,
			Close:  p.Last,
			Volume: p.BidSize + p.AskSize,
			Count:  1,
		})
		return
	}

	g := &in.PointGroups[n-1]
	if p.Last > g.High {
		g.High = p.Last
	}
	if p.Last < g.Low {
		g.Low = p.Last
	}
	g.Close = p.Last
	g.Volume += p.BidSize + p.AskSize
	g.Count++
}
