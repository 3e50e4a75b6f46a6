package ticker

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tests := []struct {
		desc    string
		period  time.Duration
		fn      func(time.Time)
		wantErr bool
	}{
		{desc: "zero period", period: 0, fn: func(time.Time) {}, wantErr: true},
		{desc: "negative period", period: -time.Second, fn: func(time.Time) {}, wantErr: true},
		{desc: "nil func", period: time.Second, wantErr: true},
		{desc: "success", period: time.Second, fn: func(time.Time) {}},
	}

	for _, test := range tests {
		_, err := New(test.period, test.fn)
		switch {
		case err == nil && test.wantErr:
			t.Errorf("TestNew(%s): got err == nil, want err != nil", test.desc)
		case err != nil && !test.wantErr:
			t.Errorf("TestNew(%s): got err == %s, want err == nil", test.desc, err)
		}
	}
}

func TestTicks(t *testing.T) {
	var count atomic.Int64
	tk, err := New(10*time.Millisecond, func(time.Time) { count.Add(1) })
	if err != nil {
		t.Fatal(err)
	}
	tk.Start()
	tk.Start() // A second Start must not start a second loop.

	deadline := time.Now().Add(5 * time.Second)
	for count.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("TestTicks: only %d ticks in 5 seconds", count.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
	tk.Stop()
}

func TestNoTickAfterStop(t *testing.T) {
	var (
		count   atomic.Int64
		stopped atomic.Bool
		late    atomic.Bool
	)
	tk, err := New(time.Millisecond, func(time.Time) {
		if stopped.Load() {
			late.Store(true)
		}
		// A slow tick makes Stop wait for it.
		time.Sleep(2 * time.Millisecond)
		count.Add(1)
	})
	if err != nil {
		t.Fatal(err)
	}
	tk.Start()

	time.Sleep(20 * time.Millisecond)
	tk.Stop()
	stopped.Store(true)
	after := count.Load()

	time.Sleep(50 * time.Millisecond)
	if got := count.Load(); got != after {
		t.Errorf("TestNoTickAfterStop: %d ticks happened after Stop() returned", got-after)
	}
	if late.Load() {
		t.Errorf("TestNoTickAfterStop: a tick started after Stop() returned")
	}

	tk.Stop() // Must be safe to call twice.
}

func TestStopBeforeStart(t *testing.T) {
	var count atomic.Int64
	tk, err := New(time.Millisecond, func(time.Time) { count.Add(1) })
	if err != nil {
		t.Fatal(err)
	}
	tk.Stop()
	tk.Start()

	time.Sleep(20 * time.Millisecond)
	if count.Load() != 0 {
		t.Errorf("TestStopBeforeStart: got %d ticks, want 0", count.Load())
	}
}
