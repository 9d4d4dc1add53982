package market

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Point is a single top-of-book observation for one instrument. Points refer
// to their instrument by name; the owning Account resolves the name when it
// needs the full Instrument.
type Point struct {
	Instrument string
	Time       time.Time
	Bid        float64
	Ask        float64
	Last       float64
	BidSize    float64
	AskSize    float64
}

// Mid returns the bid/ask midpoint.
func (p Point) Mid() float64 {
	return (p.Bid + p.Ask) / 2
}

// Spread returns ask minus bid.
func (p Point) Spread() float64 {
	return p.Ask - p.Bid
}

// ResolveLast fills Last from the book when the feed did not carry a trade
// price: ask side when ask size is present, bid side otherwise.
func (p *Point) ResolveLast() {
	if p.Last != 0 {
		return
	}
	if p.AskSize > 0 {
		p.Last = p.Ask
		return
	}
	p.Last = p.Bid
}

// ParsePoint parses one tick line of the canonical text format:
//
//	<unixSeconds> <bid> <bidSize> <ask> <askSize>
//
// fields separated by any whitespace, time in UTC epoch seconds. The
// instrument name is supplied by the caller (the file name, for file feeds).
func ParsePoint(instrument, line string) (Point, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return Point{}, fmt.Errorf("tick line needs 5 fields, got %d", len(fields))
	}

	secs, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Point{}, fmt.Errorf("bad epoch %q: %w", fields[0], err)
	}

	vals := make([]float64, 4)
	for i, s := range fields[1:5] {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Point{}, fmt.Errorf("bad field %q: %w", s, err)
		}
		vals[i] = v
	}

	p := Point{
		Instrument: instrument,
		Time:       time.Unix(secs, 0).UTC(),
		Bid:        vals[0],
		BidSize:    vals[1],
		Ask:        vals[2],
		AskSize:    vals[3],
	}
	p.ResolveLast()
	return p, nil
}

// FormatPoint renders p back into the canonical tick line format. ParsePoint
// and FormatPoint round-trip exactly for the five wire fields.
func FormatPoint(p Point) string {
	return fmt.Sprintf("%d %s %s %s %s",
		p.Time.Unix(),
		f(p.Bid), f(p.BidSize), f(p.Ask), f(p.AskSize))
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
