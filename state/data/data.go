// Package data holds the State object that is stored in a stockboard.Store.
package data

import "time"

// Record represents a stock we are displaying on the board.
type Record struct {
	// Symbol is the stock symbol: GOOGL or MSFT. It never changes.
	Symbol string `json:"symbol"`
	// Price is the current price.
	Price float64 `json:"price"`
	// Change is the price delta from the previous tick.
	Change float64 `json:"change"`
	// ChangePercent is Change as a percent of the previous price.
	ChangePercent float64 `json:"changePercent"`
	// LastTrade is when the record was last updated by a tick.
	LastTrade time.Time `json:"lastTrade"`
	// Volume is a synthetic trade volume.
	Volume int64 `json:"volume"`
	// IsEnabled indicates the record receives updates. When false, no other
	// field changes.
	IsEnabled bool `json:"isEnabled"`

	// DailyHigh and DailyLow are the running extrema since start. Zero means
	// no tick has happened yet.
	DailyHigh float64 `json:"dailyHigh"`
	DailyLow  float64 `json:"dailyLow"`
	// WeekHigh52 and WeekLow52 track the same running extrema. There is no
	// real weekly window.
	WeekHigh52 float64 `json:"weekHigh52"`
	WeekLow52  float64 `json:"weekLow52"`
}

// State holds the data stored in stockboard.Store.
type State struct {
	// Records are the stocks on the board in display order. The set of
	// symbols is fixed once the store is created.
	Records []Record
}

// Get returns the Record for symbol.
// len(s.Records) is always small, so a linear search is optimal.
func (s State) Get(symbol string) (Record, bool) {
	if i := s.Index(symbol); i >= 0 {
		return s.Records[i], true
	}
	return Record{}, false
}

// Index returns the position of symbol in Records or -1.
func (s State) Index(symbol string) int {
	for i, r := range s.Records {
		if r.Symbol == symbol {
			return i
		}
	}
	return -1
}

// Symbols returns the symbols in display order.
func (s State) Symbols() []string {
	out := make([]string, len(s.Records))
	for i, r := range s.Records {
		out[i] = r.Symbol
	}
	return out
}

// CopyRecords returns a copy of Records that is safe to modify.
func (s State) CopyRecords() []Record {
	out := make([]Record, len(s.Records))
	copy(out, s.Records)
	return out
}
