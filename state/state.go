// Package state contains the constructor for the board's stockboard.Store.
package state

import (
	"time"

	"github.com/johnsiilver/stockboard"
	"github.com/johnsiilver/stockboard/state/data"
	"github.com/johnsiilver/stockboard/state/modifiers"
)

// DefaultSymbols are the stocks on the board unless configured otherwise.
var DefaultSymbols = []string{"AAPL", "GOOGL", "MSFT", "TSLA"}

// Seeder provides starting prices and volumes.
type Seeder interface {
	Seed() float64
	Volume() int64
}

// Initial returns the starting data for symbols. A stock with an entry in
// prices starts at that price, all others are seeded by s. Every stock starts
// enabled with no extrema.
func Initial(symbols []string, prices map[string]float64, s Seeder, now time.Time) data.State {
	d := data.State{Records: make([]data.Record, 0, len(symbols))}
	for _, sym := range symbols {
		p, ok := prices[sym]
		if !ok {
			p = s.Seed()
		}
		d.Records = append(d.Records, data.Record{
			Symbol:    sym,
			Price:     p,
			LastTrade: now,
			Volume:    s.Volume(),
			IsEnabled: true,
		})
	}
	return d
}

// New is the constructor for a stockboard.Store holding d.
func New(d data.State, middle ...stockboard.Middleware) (*stockboard.Store, error) {
	return stockboard.New(d, modifiers.All, middle)
}
