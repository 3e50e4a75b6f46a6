// Package quote generates synthetic stock prices for the board.
package quote

import (
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// SeedMin and SeedMax bound a seed price.
	SeedMin = 100.0
	SeedMax = 1000.0

	// Swing is the largest fractional move of a single tick, up or down.
	Swing = 0.05

	// MaxVolume bounds a synthetic volume.
	MaxVolume = 10000
)

// Rand is the source of randomness. *rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
	Float64() float64
}

// Random draws prices uniformly around the previous price. It is not safe for
// concurrent use, which is fine inside a stockboard.Modifier as those never
// run concurrently.
type Random struct {
	rand Rand
}

// New is the constructor for Random. If r is nil, a time seeded *rand.Rand is
// used.
func New(r Rand) *Random {
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Random{rand: r}
}

// Seed returns a starting price in [SeedMin, SeedMax).
func (q *Random) Seed() float64 {
	return q.between(SeedMin, SeedMax)
}

// Next returns a price within Swing of price.
func (q *Random) Next(price float64) float64 {
	return q.between(price*(1-Swing), price*(1+Swing))
}

// Volume returns a synthetic volume in [0, MaxVolume).
func (q *Random) Volume() int64 {
	return int64(q.rand.Intn(MaxVolume))
}

func (q *Random) between(min, max float64) float64 {
	return Round2(q.rand.Float64()*(max-min) + min)
}

// Round2 rounds f to 2 decimal places.
func Round2(f float64) float64 {
	return decimal.NewFromFloat(f).Round(2).InexactFloat64()
}
