// Package modifiers holds all the stockboard.Modifier(s) for the state store.
package modifiers

import (
	"math"

	"github.com/johnsiilver/stockboard"
	"github.com/johnsiilver/stockboard/quote"
	"github.com/johnsiilver/stockboard/state/actions"
	"github.com/johnsiilver/stockboard/state/data"
)

// All is a stockboard.Modifiers made up of all Modifier(s) in this file.
var All = stockboard.NewModifiers(Tick, Toggle)

// Tick handles an Action of type actions.ActTick.
func Tick(state data.State, action stockboard.Action) data.State {
	if action.Type != actions.ActTick {
		return state
	}
	up := action.Update.(actions.TickUpdate)

	var to []data.Record
	for i, r := range state.Records {
		if !r.IsEnabled {
			continue
		}
		if to == nil {
			to = state.CopyRecords()
		}
		to[i] = next(r, up)
	}

	if to != nil {
		state.Records = to
	}
	return state
}

// next returns r after one tick.
func next(r data.Record, up actions.TickUpdate) data.Record {
	old := r.Price
	price := up.Quoter.Next(old)

	r.Price = price
	r.Change = quote.Round2(price - old)
	if old != 0 {
		r.ChangePercent = quote.Round2((price - old) / old * 100)
	}
	r.LastTrade = up.Now
	r.Volume = up.Quoter.Volume()

	r.DailyHigh = high(r.DailyHigh, price)
	r.DailyLow = low(r.DailyLow, price)
	r.WeekHigh52 = high(r.WeekHigh52, price)
	r.WeekLow52 = low(r.WeekLow52, price)
	return r
}

// high and low treat a zero bound as not yet set.
func high(cur, price float64) float64 {
	if cur == 0 {
		return price
	}
	return math.Max(cur, price)
}

func low(cur, price float64) float64 {
	if cur == 0 {
		return price
	}
	return math.Min(cur, price)
}

// Toggle handles an Action of type actions.ActToggle.
func Toggle(state data.State, action stockboard.Action) data.State {
	if action.Type != actions.ActToggle {
		return state
	}

	i := state.Index(action.Update.(string))
	if i < 0 {
		return state
	}

	to := state.CopyRecords()
	to[i].IsEnabled = !to[i].IsEnabled
	state.Records = to
	return state
}
