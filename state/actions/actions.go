// Package actions details stockboard.Actions that are used by modifiers to modify the store.
package actions

import (
	"time"

	"github.com/johnsiilver/stockboard"
)

const (
	// ActTick indicates a tick of the board: every enabled stock gets a new price.
	ActTick stockboard.ActionType = iota
	// ActToggle indicates we want to flip whether a stock receives updates.
	ActToggle
)

// Quoter provides new prices and volumes for a tick.
type Quoter interface {
	// Next returns the price following price.
	Next(price float64) float64
	// Volume returns a trade volume.
	Volume() int64
}

// TickUpdate is the Update of an ActTick Action.
type TickUpdate struct {
	// Now is the time of the tick.
	Now time.Time
	// Quoter draws the new prices.
	Quoter Quoter
}

// Tick tells the board to move the price of every enabled stock.
func Tick(now time.Time, q Quoter) stockboard.Action {
	return stockboard.Action{Type: ActTick, Update: TickUpdate{Now: now, Quoter: q}}
}

// Toggle tells the board to flip whether symbol receives updates.
func Toggle(symbol string) stockboard.Action {
	return stockboard.Action{Type: ActToggle, Update: symbol}
}
