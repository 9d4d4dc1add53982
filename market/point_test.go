package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePoint(t *testing.T) {
	p, err := ParsePoint("ES", "1700000000 100.25 3 100.5 7")
	require.NoError(t, err)

	assert.Equal(t, "ES", p.Instrument)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), p.Time)
	assert.Equal(t, 100.25, p.Bid)
	assert.Equal(t, 3.0, p.BidSize)
	assert.Equal(t, 100.5, p.Ask)
	assert.Equal(t, 7.0, p.AskSize)
}

func TestParsePointLastDefaults(t *testing.T) {
	// Ask size present: last comes from the ask side.
	p, err := ParsePoint("ES", "1700000000 100 1 101 5")
	require.NoError(t, err)
	assert.Equal(t, 101.0, p.Last)

	// No ask size: last falls back to the bid.
	p, err = ParsePoint("ES", "1700000000 100 1 101 0")
	require.NoError(t, err)
	assert.Equal(t, 100.0, p.Last)
}

func TestParsePointMalformed(t *testing.T) {
	for _, line := range []string{
		"",
		"not-a-number 100 1 101 1",
		"1700000000 100 1",
		"1700000000 abc 1 101 1",
	} {
		_, err := ParsePoint("ES", line)
		assert.Error(t, err, "line %q", line)
	}
}

func TestPointRoundTrip(t *testing.T) {
	line := "1700000123 100.25 3 100.5 7"
	p, err := ParsePoint("NQ", line)
	require.NoError(t, err)
	assert.Equal(t, line, FormatPoint(p))
}

func TestPointMidSpread(t *testing.T) {
	p := Point{Bid: 100, Ask: 102}
	assert.Equal(t, 101.0, p.Mid())
	assert.Equal(t, 2.0, p.Spread())
}

func TestInstrumentAppendGroups(t *testing.T) {
	in := NewInstrument("ES")
	in.TimeFrame = time.Minute

	t0 := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	ticks := []Point{
		{Instrument: "ES", Time: t0, Last: 100, AskSize: 1},
		{Instrument: "ES", Time: t0.Add(10 * time.Second), Last: 103, AskSize: 1},
		{Instrument: "ES", Time: t0.Add(20 * time.Second), Last: 99, AskSize: 1},
		{Instrument: "ES", Time: t0.Add(time.Minute), Last: 101, AskSize: 1},
	}
	for _, p := range ticks {
		in.Append(p)
	}

	require.Len(t, in.Points, 4)
	require.Len(t, in.PointGroups, 2)

	first := in.PointGroups[0]
	assert.Equal(t, t0, first.Time)
	assert.Equal(t, 100.0, first.Open)
	assert.Equal(t, 103.0, first.High)
	assert.Equal(t, 99.0, first.Low)
	assert.Equal(t, 99.0, first.Close)
	assert.Equal(t, 3, first.Count)

	second := in.PointGroups[1]
	assert.Equal(t, 101.0, second.Open)
	assert.Equal(t, 1, second.Count)
}

func TestContractSizeDefaults(t *testing.T) {
	assert.Equal(t, 20.0, ContractSize("NQ"))
	assert.Equal(t, 1.0, ContractSize("ES"))
	assert.Equal(t, 1.0, ContractSize("UNKNOWN"))
}
