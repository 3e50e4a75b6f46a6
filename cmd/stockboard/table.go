package main

import (
	"fmt"
	"io"

	"github.com/johnsiilver/stockboard/state/data"
	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
)

var header = []string{"Symbol", "Price", "Change", "Change %", "Volume", "Day Low", "Day High", "52w Low", "52w High", "Status"}

// renderTable writes the board as a table to w.
func renderTable(w io.Writer, recs []data.Record) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)

	for _, r := range recs {
		table.Append(row(r))
	}
	table.Render()
}

func row(r data.Record) []string {
	status := "live"
	if !r.IsEnabled {
		status = "paused"
	}
	return []string{
		r.Symbol,
		money(r.Price),
		signed(r.Change),
		signed(r.ChangePercent) + "%",
		fmt.Sprintf("%d", r.Volume),
		extreme(r.DailyLow),
		extreme(r.DailyHigh),
		extreme(r.WeekLow52),
		extreme(r.WeekHigh52),
		status,
	}
}

func money(f float64) string {
	return decimal.NewFromFloat(f).StringFixed(2)
}

func signed(f float64) string {
	if f > 0 {
		return "+" + money(f)
	}
	return money(f)
}

// extreme prints an extremum, 0 means the stock has not traded yet.
func extreme(f float64) string {
	if f == 0 {
		return "-"
	}
	return money(f)
}
