/*
Package market provides the stock board service: a stockboard.Store of stock
records that a Ticker moves every period.

Usage is simple:

	svc, err := market.New()
	if err != nil {
		// Do something
	}
	defer svc.Stop()

	ch, cancel, err := svc.Subscribe("AAPL")
	if err != nil {
		// Do something
	}
	defer cancel()

	for sig := range ch {
		r, _ := sig.Record("AAPL")
		fmt.Println(r.Symbol, r.Price)
	}
*/
package market

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/johnsiilver/stockboard"
	"github.com/johnsiilver/stockboard/quote"
	"github.com/johnsiilver/stockboard/state"
	"github.com/johnsiilver/stockboard/state/actions"
	"github.com/johnsiilver/stockboard/state/data"
	"github.com/johnsiilver/stockboard/ticker"
)

// DefaultPeriod is the time between ticks.
const DefaultPeriod = 2 * time.Second

// Quoter provides seed prices, next prices and volumes. *quote.Random
// satisfies it.
type Quoter interface {
	actions.Quoter
	state.Seeder
}

type options struct {
	symbols  []string
	period   time.Duration
	seeds    map[string]float64
	quoter   Quoter
	middle   []stockboard.Middleware
	now      func() time.Time
	noTicker bool
}

// Option is an optional argument to New().
type Option func(o *options)

// WithSymbols sets the stocks on the board. The default is state.DefaultSymbols.
func WithSymbols(symbols ...string) Option {
	return func(o *options) {
		o.symbols = symbols
	}
}

// WithPeriod sets the time between ticks. The default is DefaultPeriod.
func WithPeriod(d time.Duration) Option {
	return func(o *options) {
		o.period = d
	}
}

// WithSeeds sets the starting price of some stocks. Others get a random price.
func WithSeeds(prices map[string]float64) Option {
	return func(o *options) {
		o.seeds = prices
	}
}

// WithQuoter replaces the random price generator.
func WithQuoter(q Quoter) Option {
	return func(o *options) {
		o.quoter = q
	}
}

// WithMiddleware adds stockboard.Middleware to the store.
func WithMiddleware(m ...stockboard.Middleware) Option {
	return func(o *options) {
		o.middle = append(o.middle, m...)
	}
}

// WithClock replaces time.Now as the source of trade times.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithoutTicker creates a Service that only ticks when Tick() is called.
func WithoutTicker() Option {
	return func(o *options) {
		o.noTicker = true
	}
}

// Service is the stock board. Create it with New() and Stop() it when done.
type Service struct {
	store  *stockboard.Store
	ticker *ticker.Ticker
	quoter Quoter
	now    func() time.Time

	stopOnce sync.Once
}

// New is the constructor for Service. Unless WithoutTicker() is passed the
// ticker is running when New returns.
func New(opts ...Option) (*Service, error) {
	o := options{symbols: state.DefaultSymbols, period: DefaultPeriod, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	o.now = wallClock(o.now)

	if len(o.symbols) == 0 {
		return nil, fmt.Errorf("the board must have at least one stock")
	}
	if err := validSeeds(o.symbols, o.seeds); err != nil {
		return nil, err
	}
	if o.quoter == nil {
		o.quoter = quote.New(nil)
	}

	store, err := state.New(state.Initial(o.symbols, o.seeds, o.quoter, o.now()), o.middle...)
	if err != nil {
		return nil, err
	}

	s := &Service{store: store, quoter: o.quoter, now: o.now}

	if !o.noTicker {
		s.ticker, err = ticker.New(o.period, s.onTick)
		if err != nil {
			store.Stop()
			return nil, err
		}
		s.ticker.Start()
	}
	glog.Infof("stock board started with %v", o.symbols)
	return s, nil
}

// wallClock strips the monotonic reading from now's times and puts them in UTC.
// Records then compare equal to their JSON decoded copies.
func wallClock(now func() time.Time) func() time.Time {
	return func() time.Time {
		return now().Round(0).UTC()
	}
}

func validSeeds(symbols []string, seeds map[string]float64) error {
	known := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		known[s] = true
	}
	for sym, p := range seeds {
		if !known[sym] {
			return fmt.Errorf("seed price for stock %s which is not on the board", sym)
		}
		if p <= 0 {
			return fmt.Errorf("seed price for stock %s must be positive, was %v", sym, p)
		}
	}
	return nil
}

func (s *Service) onTick(time.Time) {
	if err := s.Tick(); err != nil && !errors.Is(err, stockboard.ErrStopped) {
		glog.Errorf("problem ticking the board: %s", err)
	}
}

// Tick moves the price of every enabled stock once.
func (s *Service) Tick() error {
	return s.store.Perform(actions.Tick(s.now(), s.quoter))
}

// Get returns the current record for symbol. An unknown symbol returns an
// error wrapping stockboard.ErrNotFound.
func (s *Service) Get(symbol string) (data.Record, error) {
	return s.store.Get(symbol)
}

// All returns every record in display order.
func (s *Service) All() []data.Record {
	return s.store.All()
}

// Toggle flips whether symbol receives updates. An unknown symbol is ignored.
func (s *Service) Toggle(symbol string) error {
	return s.store.Perform(actions.Toggle(symbol))
}

// Subscribe subscribes to changes of symbol, or of every stock with
// stockboard.Any. See stockboard.Store.Subscribe().
func (s *Service) Subscribe(symbol string) (<-chan stockboard.Signal, stockboard.CancelFunc, error) {
	return s.store.Subscribe(symbol)
}

// Stop stops the ticker and then the store. Once it returns there are no more
// updates and every subscription is closed.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		if s.ticker != nil {
			s.ticker.Stop()
		}
		s.store.Stop()
		glog.Infof("stock board stopped")
	})
}
