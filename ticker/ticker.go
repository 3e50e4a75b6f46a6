// Package ticker provides a fixed period repeating timer that can be started
// and stopped exactly once.
package ticker

import (
	"fmt"
	"sync"
	"time"
)

// Ticker calls a function every period. There is no catch up: if a call runs
// long, the missed firings are dropped.
type Ticker struct {
	period time.Duration
	fn     func(time.Time)

	startOnce sync.Once
	stopOnce  sync.Once
	started   chan struct{}
	done      chan struct{}
	exited    chan struct{}
}

// New is the constructor for Ticker. fn is called with the firing time.
func New(period time.Duration, fn func(time.Time)) (*Ticker, error) {
	if period <= 0 {
		return nil, fmt.Errorf("ticker period must be positive, was %v", period)
	}
	if fn == nil {
		return nil, fmt.Errorf("ticker function cannot be nil")
	}
	return &Ticker{
		period:  period,
		fn:      fn,
		started: make(chan struct{}),
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
	}, nil
}

// Period returns the period of the Ticker.
func (t *Ticker) Period() time.Duration {
	return t.period
}

// Start starts the Ticker. Calls after the first, or after Stop(), do nothing.
func (t *Ticker) Start() {
	t.startOnce.Do(func() {
		select {
		case <-t.done:
			return
		default:
		}
		close(t.started)
		go t.loop()
	})
}

func (t *Ticker) loop() {
	defer close(t.exited)

	tick := time.NewTicker(t.period)
	defer tick.Stop()

	for {
		select {
		case <-t.done:
			return
		case now := <-tick.C:
			// Stop() may have raced with this firing.
			select {
			case <-t.done:
				return
			default:
			}
			t.fn(now)
		}
	}
}

// Stop stops the Ticker. If fn is running, Stop waits for it to return. Once
// Stop returns fn is never called again. fn must not call Stop.
func (t *Ticker) Stop() {
	t.stopOnce.Do(func() {
		close(t.done)
	})
	// Make sure a concurrent Start() has settled before checking started.
	t.startOnce.Do(func() {})

	select {
	case <-t.started:
		<-t.exited
	default:
	}
}
