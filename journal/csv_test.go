package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDeal() DealRecord {
	return DealRecord{
		DealID:     "01J0000000000000000000000A",
		OrderID:    "01J0000000000000000000000B",
		PositionID: "01J0000000000000000000000C",
		Instrument: "ES",
		Side:       "Buy",
		Volume:     2,
		Price:      101.25,
		Time:       time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC),
		Reason:     "Close",
		GainLoss:   6.5,
	}
}

func TestCSVJournal(t *testing.T) {
	dir := t.TempDir()
	dealsPath := filepath.Join(dir, "deals.csv")
	equityPath := filepath.Join(dir, "equity.csv")

	j, err := NewCSV(dealsPath, equityPath)
	require.NoError(t, err)

	require.NoError(t, j.RecordDeal(sampleDeal()))
	require.NoError(t, j.RecordEquity(EquitySnapshot{
		Time:     time.Date(2024, 3, 4, 14, 30, 1, 0, time.UTC),
		Balance:  50006.5,
		Equity:   50006.5,
		GainLoss: 0,
	}))
	require.NoError(t, j.Close())

	rows := readCSV(t, dealsPath)
	require.Len(t, rows, 2)
	assert.Equal(t, "deal_id", rows[0][0])
	assert.Equal(t, "ES", rows[1][3])
	assert.Equal(t, "Close", rows[1][8])

	rows = readCSV(t, equityPath)
	require.Len(t, rows, 2)
	assert.Equal(t, "time", rows[0][0])
	assert.Equal(t, "50006.500000", rows[1][1])
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}
