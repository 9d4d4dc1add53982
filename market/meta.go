// market/meta.go
package market

// Meta describes static contract details the account needs for P/L math.
type Meta struct {
	Name         string
	Exchange     string
	Type         InstrumentType
	ContractSize float64
}

var Instruments = map[string]Meta{
	"ES": {
		Name:     "ES",
		Exchange: "CME",
		Type:     Future,
	},
	"NQ": {
		Name:         "NQ",
		Exchange:     "CME",
		Type:         Future,
		ContractSize: 20,
	},
	"EUR_USD": {
		Name:         "EUR_USD",
		Type:         FX,
		ContractSize: 1,
	},
	"AAPL": {
		Name:     "AAPL",
		Exchange: "NASDAQ",
		Type:     Equity,
	},
}

// ContractSize returns the multiplier for one unit of volume. Instruments
// without registered metadata trade at size 1.
func ContractSize(name string) float64 {
	meta, ok := Instruments[name]
	if !ok || meta.ContractSize == 0 {
		return 1
	}
	return meta.ContractSize
}
