package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100*time.Millisecond, cfg.Simulation.SpeedDuration())
}

func TestSpeedDefaultsTo100ms(t *testing.T) {
	s := SimulationConfig{Speed: 0}
	assert.Equal(t, 100*time.Millisecond, s.SpeedDuration())

	s.Speed = 250
	assert.Equal(t, 250*time.Millisecond, s.SpeedDuration())
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "terminal.yaml")
	data := `
account:
  descriptor: ACC-42
  initial_balance: 75000
simulation:
  speed: 50
  source: /data/ticks
  instruments: [ES, NQ]
journal:
  type: sqlite
  db_path: ./deals.sqlite
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "ACC-42", cfg.Account.Descriptor)
	assert.Equal(t, 75000.0, cfg.Account.InitialBalance)
	assert.Equal(t, 50*time.Millisecond, cfg.Simulation.SpeedDuration())
	assert.Equal(t, "/data/ticks", cfg.Simulation.Source)
	assert.Equal(t, []string{"ES", "NQ"}, cfg.Simulation.Instruments)
	assert.Equal(t, "sqlite", cfg.Journal.Type)
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "terminal.json")
	data := `{
  "account": {"descriptor": "ACC-7", "initial_balance": 50000},
  "simulation": {"speed": 100, "source": "./ticks"},
  "journal": {"type": "none"}
}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ACC-7", cfg.Account.Descriptor)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"zero balance":      func(c *Config) { c.Account.InitialBalance = 0 },
		"negative speed":    func(c *Config) { c.Simulation.Speed = -1 },
		"missing source":    func(c *Config) { c.Simulation.Source = "" },
		"bad journal type":  func(c *Config) { c.Journal.Type = "postgres" },
		"csv missing files": func(c *Config) { c.Journal = JournalConfig{Type: "csv"} },
		"sqlite missing db": func(c *Config) { c.Journal = JournalConfig{Type: "sqlite"} },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.yaml")

	cfg := Default()
	cfg.Account.Descriptor = "ROUND-TRIP"
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
