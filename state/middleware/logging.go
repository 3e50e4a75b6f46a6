// Package middleware provides middleware to our stockboard.Store.
package middleware

import (
	"github.com/golang/glog"
	"github.com/johnsiilver/stockboard"
	"github.com/johnsiilver/stockboard/state/actions"
	"github.com/johnsiilver/stockboard/state/data"
	"github.com/kylelemons/godebug/pretty"
)

var pConfig = &pretty.Config{
	Diffable: true,

	IncludeUnexported:   false,
	PrintStringers:      true,
	PrintTextMarshalers: true,
}

// Logging provides middleware for logging committed changes to the board.
type Logging struct {
	lastData stockboard.State
}

// Log implements stockboard.Middleware. At -v=1 it logs each commit, at -v=2
// it also logs a diff against the previous commit.
func (l *Logging) Log(args *stockboard.MWArgs) (changedData *data.State, stop bool, err error) {
	old := args.GetState()

	go func() {
		defer args.WG.Done() // Signal when we are done. Not doing this will stall the store.
		state := <-args.Committed
		if state.IsZero() { // Nothing was committed, no need to log.
			return
		}

		if glog.V(1) {
			glog.Infof("board version %d: %s changed %v", state.Version, actionName(args.Action), Changed(old.Data, state.Data))
		}
		if glog.V(2) {
			if l.lastData.IsZero() {
				l.lastData = old
			}
			glog.Infof("board diff -old/+new:\n%s", pConfig.Compare(l.lastData, state))
		}
		l.lastData = state
	}()
	return nil, false, nil
}

func actionName(a stockboard.Action) string {
	switch a.Type {
	case actions.ActTick:
		return "tick"
	case actions.ActToggle:
		return "toggle"
	}
	return "unknown action"
}

// Changed returns the symbols of the records in z that differ from a.
func Changed(a, z data.State) []string {
	var out []string
	for _, r := range changedRecords(a, z) {
		out = append(out, r.Symbol)
	}
	return out
}

// changedRecords returns the records of z that differ from the record with
// the same symbol in a.
func changedRecords(a, z data.State) []data.Record {
	var out []data.Record
	for _, r := range z.Records {
		prev, ok := a.Get(r.Symbol)
		if ok && prev == r {
			continue
		}
		out = append(out, r)
	}
	return out
}
