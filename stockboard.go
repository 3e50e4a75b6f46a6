/*
Package stockboard provides an immutable store of stock records with
subscriptions to changes of individual symbols. It is the state store behind a
live stock board: a ticker performs price updates, views subscribe to the
symbols they display and users toggle whether a symbol keeps updating.

Features

 * Immutable data does not require locking outside the store.
 * Subscribing to a single symbol, or to every change, is simple.
 * Subscribers always receive the latest change, never a stale backlog.
 * Stop() is final: no signal is delivered after it returns.

Immutability

When we say immutable, we mean that everything gets copied. A Modifier must
copy the records slice before changing a record in it. data.State.CopyRecords()
exists for that reason.

Usage structure

The store is best used in a modular layout:

  └── state
    ├── state.go
    ├── actions
    │   └── actions.go
    ├── data
    │   └── data.go
    ├── middleware
    │   └── logging.go
    └── modifiers
        └── modifiers.go

  state.go - Holds the constructor for a stockboard.Store for the board
  actions.go - Holds the actions that will be used by the modifiers to update the store
  data.go - Holds the definition of a stock record and the state object
  logging.go - Holds middleware for acting on committed changes, one file per concern
  modifiers.go - Holds all the modifiers that are used by the Store to modify its data
*/
package stockboard

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/johnsiilver/stockboard/state/data"
)

// Any is used to indicate to Store.Subscribe() that you want updates for
// any change to the store, not just a single symbol.
const Any = "any"

var (
	// ErrNotFound indicates the symbol is not on the board.
	ErrNotFound = errors.New("not found")
	// ErrStopped indicates the Store has been stopped.
	ErrStopped = errors.New("store is stopped")
)

// Signal is used to signal subscribers that a record in the Store has changed.
type Signal struct {
	// Version is the version of the symbol that was changed. If Any was
	// passed, it will be the store's version, not a specific symbol.
	Version uint64

	// Symbols are the symbols that were updated. This is only a single symbol
	// unless Any is used.
	Symbols []string

	// State is the new State object.
	State State
}

// SymbolChanged loops over Symbols to determine if "sym" exists.
// Only useful if you are subscribed to Any, as otherwise its a single entry.
func (s Signal) SymbolChanged(sym string) bool {
	for _, v := range s.Symbols {
		if v == sym {
			return true
		}
	}
	return false
}

// Record returns the committed Record for "sym" in this Signal's State.
func (s Signal) Record(sym string) (data.Record, bool) {
	return s.State.Data.Get(sym)
}

// ActionType is an enumerated constant representing the type of Action.
type ActionType int

// Action represents an action to take on the Store.
type Action struct {
	// Type is the type of Action.
	Type ActionType

	// Update holds the values to alter in the Update.
	Update interface{}
}

// Modifier takes in the existing state and an action to perform on the state.
// The result will be the new state. Implementations must not mutate "state".
// The returned state must hold the same symbols in the same order.
type Modifier func(state data.State, action Action) data.State

// Modifiers provides the internals the ability to use the Modifier.
type Modifiers struct {
	updater Modifier
}

// NewModifiers creates a new Modifiers with the Modifiers provided.
func NewModifiers(updaters ...Modifier) Modifiers {
	if len(updaters) == 0 {
		return Modifiers{}
	}
	return Modifiers{updater: combineModifier(updaters...)}
}

// run calls the updater on state/action.
func (m Modifiers) run(state data.State, action Action) data.State {
	return m.updater(state, action)
}

// combineModifier takes multiple Modifiers and combines them into a
// single instance.
func combineModifier(updaters ...Modifier) Modifier {
	return func(state data.State, action Action) data.State {
		for _, u := range updaters {
			state = u(state, action)
		}
		return state
	}
}

// State holds the state data.
type State struct {
	// Version is the version of the state this represents. Each change updates
	// this version number.
	Version uint64

	// SymbolVersions holds the version each symbol is at. This allows us to
	// track individual record updates.
	SymbolVersions map[string]uint64

	// Data is the state data.
	Data data.State
}

// IsZero indicates that the State isn't set.
func (s State) IsZero() bool {
	return s.Data.Records == nil
}

// GetState returns the state of the Store.
type GetState func() State

// MWArgs are the arguments to a Middleware implementor.
type MWArgs struct {
	// Action is the Action that is being performed.
	Action Action
	// NewData is the proposed new State.Data in the Store. This can be
	// modified by the Middleware and returned as the changedData return value.
	NewData data.State
	// GetState is a function that will return the current State of the Store.
	GetState GetState
	// Committed is only used if the Middleware will spin off a goroutine. In
	// that case, the committed state will be sent via this channel. If the data
	// was not committed, because another Middleware cancelled the commit or
	// nothing changed, the channel is closed and State.IsZero() will be true.
	Committed chan State

	// WG must have .Done() called by all Middleware once it has finished. If
	// using Committed, you must not call WG.Done() until your goroutine is
	// completed.
	WG *sync.WaitGroup
}

// Middleware provides a function that is called before the state is written.
// It returns either a changed version of args.NewData or nil if it is
// unchanged, an indicator if we should stop processing middleware but continue
// with the commit, and an error if we should not commit.
// args.WG.Done() must be called when the Middleware finishes. Perform does not
// return until every Middleware has done so.
type Middleware func(args *MWArgs) (changedData *data.State, stop bool, err error)

// subscribers holds a mapping of symbols to channels that will receive
// an update when the record changes. The special key Any will be updated
// for any change.
type subscribers map[string][]subscriber

type subscriber struct {
	id int
	ch chan Signal
}

type stateChange struct {
	newVersion        uint64
	newSymbolVersions map[string]uint64
	changed           []string
}

// CancelFunc is used to cancel a subscription.
type CancelFunc func()

func cancelFunc(s *Store, symbol string, id int) CancelFunc {
	return func() {
		s.smu.Lock()
		defer s.smu.Unlock()

		v := s.subscribers[symbol]
		l := make([]subscriber, 0, len(v))
		for _, sub := range v {
			if sub.id == id {
				close(sub.ch)
				continue
			}
			l = append(l, sub)
		}
		if len(l) == 0 {
			delete(s.subscribers, symbol)
			return
		}
		s.subscribers[symbol] = l
	}
}

// Store provides access to the stock records for the board.
// The Store is thread-safe.
type Store struct {
	// mod holds all the state modifiers.
	mod Modifiers

	// middle holds all the Middleware we must apply.
	middle []Middleware

	// pmu prevents concurrent Perform() calls and guards stopped against
	// Perform.
	pmu sync.Mutex

	// state is current state of the Store.
	state atomic.Value

	// smu protects subscribers, sid and stopped.
	smu sync.RWMutex

	// subscribers holds the map of subscribers for different symbols.
	subscribers subscribers

	// sid is an id for a subscriber.
	sid int

	// stopped is set once by Stop(). Written with both pmu and smu held.
	stopped bool
}

// New is the constructor for Store. initial holds the records of the board,
// which must have unique, non-empty symbols.
func New(initial data.State, mod Modifiers, middle []Middleware) (*Store, error) {
	if mod.updater == nil {
		return nil, fmt.Errorf("mod must contain at least one Modifier")
	}

	symbolVersions := make(map[string]uint64, len(initial.Records))
	for _, r := range initial.Records {
		if r.Symbol == "" {
			return nil, fmt.Errorf("a record cannot have an empty symbol")
		}
		if _, ok := symbolVersions[r.Symbol]; ok {
			return nil, fmt.Errorf("symbol %s is on the board more than once", r.Symbol)
		}
		symbolVersions[r.Symbol] = 0
	}
	initial.Records = initial.CopyRecords()

	s := &Store{mod: mod, subscribers: subscribers{}, middle: middle}
	s.state.Store(State{Version: 0, SymbolVersions: symbolVersions, Data: initial})

	return s, nil
}

// Perform performs an Action on the Store's state. Subscribers of the changed
// symbols have been signalled when it returns.
func (s *Store) Perform(a Action) error {
	s.pmu.Lock()
	defer s.pmu.Unlock()

	if s.stopped {
		return ErrStopped
	}

	state := s.state.Load().(State)
	n := s.mod.run(state.Data, a)

	middleWg := &sync.WaitGroup{}
	middleWg.Add(len(s.middle))

	n, commitChans, err := s.processMiddleware(a, n, middleWg)
	if err != nil {
		for _, ch := range commitChans {
			close(ch)
		}
		s.waitMiddleware(middleWg)
		return err
	}

	s.perform(state, n, commitChans)
	s.waitMiddleware(middleWg)
	return nil
}

// waitMiddleware waits for all Middleware to call WG.Done().
func (s *Store) waitMiddleware(wg *sync.WaitGroup) {
	if len(s.middle) == 0 {
		return
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(5 * time.Second)
	defer timer.Stop()

	// This helps users diagnose misbehaving middleware.
	for {
		select {
		case <-done:
			return
		case <-timer.C:
			glog.Infof("middleware is taking longer that 5 seconds, did you call wg.Done()?")
			timer.Reset(5 * time.Second)
		}
	}
}

// processMiddleware runs the Middleware chain. Middleware skipped because of
// a stop or an error has its WG slot released here.
func (s *Store) processMiddleware(a Action, newData data.State, wg *sync.WaitGroup) (data.State, []chan State, error) {
	commitChans := make([]chan State, 0, len(s.middle))

	for i, m := range s.middle {
		ch := make(chan State, 1)
		commitChans = append(commitChans, ch)

		cd, stop, err := m(&MWArgs{Action: a, NewData: newData, GetState: s.State, Committed: ch, WG: wg})
		if err != nil {
			release(wg, len(s.middle)-i-1)
			return data.State{}, commitChans, err
		}

		if cd != nil {
			newData = *cd
		}

		if stop {
			release(wg, len(s.middle)-i-1)
			break
		}
	}
	return newData, commitChans, nil
}

func release(wg *sync.WaitGroup, n int) {
	for i := 0; i < n; i++ {
		wg.Done()
	}
}

func (s *Store) perform(state State, n data.State, commitChans []chan State) {
	changed := symbolsChanged(state.Data, n)

	// This can happen if the action did not apply or middleware interferes.
	if len(changed) == 0 {
		for _, ch := range commitChans {
			close(ch)
		}
		return
	}

	// Copy the symbol versions so that its safe between loaded states.
	symbolVersions := make(map[string]uint64, len(state.SymbolVersions))
	for k, v := range state.SymbolVersions {
		symbolVersions[k] = v
	}

	for _, k := range changed {
		symbolVersions[k] = symbolVersions[k] + 1
	}

	sc := stateChange{
		newVersion:        state.Version + 1,
		newSymbolVersions: symbolVersions,
		changed:           changed,
	}

	written := State{Data: n, Version: sc.newVersion, SymbolVersions: sc.newSymbolVersions}
	s.state.Store(written)
	s.cast(sc, written)

	for _, ch := range commitChans {
		ch <- written
	}
}

// Subscribe creates a subscriber to be notified when the record for symbol is
// updated. The notification comes over the returned channel, which always
// holds the latest Signal. If symbol is Any, every change sends an update.
// CancelFunc() can be called to cancel the subscription. On cancel or Stop()
// the channel is closed.
func (s *Store) Subscribe(symbol string) (<-chan Signal, CancelFunc, error) {
	if symbol != Any {
		if _, ok := s.State().Data.Get(symbol); !ok {
			return nil, nil, fmt.Errorf("cannot subscribe to stock %s: %w", symbol, ErrNotFound)
		}
	}

	ch := make(chan Signal, 1)

	s.smu.Lock()
	defer s.smu.Unlock()

	if s.stopped {
		return nil, nil, ErrStopped
	}

	id := s.sid
	s.sid++
	s.subscribers[symbol] = append(s.subscribers[symbol], subscriber{id: id, ch: ch})

	return ch, cancelFunc(s, symbol, id), nil
}

// State returns the current stored state.
func (s *Store) State() State {
	return s.state.Load().(State)
}

// Get returns the current Record for symbol.
func (s *Store) Get(symbol string) (data.Record, error) {
	r, ok := s.State().Data.Get(symbol)
	if !ok {
		return data.Record{}, fmt.Errorf("stock %s %w", symbol, ErrNotFound)
	}
	return r, nil
}

// All returns a copy of every Record in display order.
func (s *Store) All() []data.Record {
	return s.State().Data.CopyRecords()
}

// Stop stops the Store. It waits for any Perform in progress, closes every
// subscriber channel and causes later calls to Perform to return ErrStopped.
// No Signal is delivered after Stop returns. Calling Stop more than once is
// safe.
func (s *Store) Stop() {
	s.pmu.Lock()
	defer s.pmu.Unlock()

	s.smu.Lock()
	defer s.smu.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true

	for _, subs := range s.subscribers {
		for _, sub := range subs {
			select {
			case <-sub.ch:
			default:
			}
			close(sub.ch)
		}
	}
	s.subscribers = subscribers{}
}

// cast updates subscribers for data changes. Only a single cast runs at a
// time, as it is called with pmu held.
func (s *Store) cast(sc stateChange, state State) {
	s.smu.RLock()
	defer s.smu.RUnlock()

	for _, sym := range sc.changed {
		for _, sub := range s.subscribers[sym] {
			signal(Signal{Version: sc.newSymbolVersions[sym], State: state, Symbols: []string{sym}}, sub.ch)
		}
	}

	for _, sub := range s.subscribers[Any] {
		signal(Signal{Version: sc.newVersion, State: state, Symbols: sc.changed}, sub.ch)
	}
}

// signal sends a Signal on a channel. If the channel holds an older Signal
// the reader has not picked up, that Signal is replaced.
func signal(sig Signal, ch chan Signal) {
	for {
		select {
		case ch <- sig:
			return
		default:
		}

		select {
		case <-ch:
		default:
		}
	}
}

// symbolsChanged detects which records changed between a and z and returns
// their symbols, sorted. It panics if z does not hold the same symbols in
// the same order as a, which means a Modifier is broken.
func symbolsChanged(a, z data.State) []string {
	if len(a.Records) != len(z.Records) {
		panic(fmt.Sprintf("a Modifier changed the number of records from %d to %d", len(a.Records), len(z.Records)))
	}

	r := []string{}
	for i := range a.Records {
		if a.Records[i].Symbol != z.Records[i].Symbol {
			panic(fmt.Sprintf("a Modifier changed symbol %s to %s", a.Records[i].Symbol, z.Records[i].Symbol))
		}
		if !sameRecord(a.Records[i], z.Records[i]) {
			r = append(r, a.Records[i].Symbol)
		}
	}
	sort.Strings(r)
	return r
}

func sameRecord(a, z data.Record) bool {
	if !a.LastTrade.Equal(z.LastTrade) {
		return false
	}
	a.LastTrade, z.LastTrade = time.Time{}, time.Time{}
	return a == z
}
