package server

import (
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/johnsiilver/stockboard/client"
	"github.com/johnsiilver/stockboard/market"
	"github.com/johnsiilver/stockboard/messages"
	"github.com/johnsiilver/stockboard/quote"
	"github.com/johnsiilver/stockboard/state/data"
	"github.com/johnsiilver/stockboard/state/middleware"
	"github.com/kylelemons/godebug/pretty"
	"github.com/prometheus/client_golang/prometheus"
)

type testBoard struct {
	svc   *market.Service
	board *Board
	srv   *httptest.Server
}

func (tb testBoard) addr() string {
	return strings.TrimPrefix(tb.srv.URL, "http://")
}

func newTestBoard(t *testing.T) testBoard {
	t.Helper()

	reg := prometheus.NewRegistry()
	m, err := middleware.NewMetrics(reg)
	if err != nil {
		t.Fatal(err)
	}

	svc, err := market.New(
		market.WithoutTicker(),
		market.WithQuoter(quote.New(rand.New(rand.NewSource(1)))),
		market.WithMiddleware(m.Observe),
	)
	if err != nil {
		t.Fatal(err)
	}

	b, err := New(svc, WithGatherer(reg))
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(b)

	t.Cleanup(func() {
		srv.Close()
		svc.Stop()
	})
	return testBoard{svc: svc, board: b, srv: srv}
}

func symbols(recs []data.Record) []string {
	var s []string
	for _, r := range recs {
		s = append(s, r.Symbol)
	}
	return s
}

func next(t *testing.T, c *client.Board) messages.Server {
	t.Helper()
	select {
	case m, ok := <-c.Updates:
		if !ok {
			t.Fatalf("Updates closed")
		}
		return m
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout waiting for a message from the server")
	}
	return messages.Server{}
}

func waitFor(t *testing.T, desc string, f func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !f() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", desc)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNew(t *testing.T) {
	if _, err := New(nil, WithNarrowWidth(0)); err == nil {
		t.Errorf("TestNew: got err == nil for a zero narrow width")
	}
}

func TestNarrow(t *testing.T) {
	b, err := New(nil, WithNarrowWidth(600))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		width int
		want  bool
	}{
		{320, true},
		{600, true},
		{601, false},
		{1280, false},
	}
	for _, test := range tests {
		if got := b.Narrow(test.width); got != test.want {
			t.Errorf("TestNarrow(%d): got %v, want %v", test.width, got, test.want)
		}
	}
}

func TestClientServer(t *testing.T) {
	tb := newTestBoard(t)

	c, err := client.Dial(tb.addr())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	snap := next(t, c)
	if snap.Type != messages.SMSnapshot {
		t.Fatalf("TestClientServer: first message was type %v, want SMSnapshot", snap.Type)
	}
	if snap.ID != tb.board.ID() {
		t.Errorf("TestClientServer: snapshot ID = %q, want %q", snap.ID, tb.board.ID())
	}
	if diff := pretty.Compare(tb.svc.All(), snap.Records); diff != "" {
		t.Errorf("TestClientServer(snapshot): -want/+got:\n%s", diff)
	}

	if err := tb.svc.Tick(); err != nil {
		t.Fatal(err)
	}
	up := next(t, c)
	if up.Type != messages.SMUpdate {
		t.Fatalf("TestClientServer: got type %v after a tick, want SMUpdate", up.Type)
	}
	if diff := pretty.Compare([]string{"AAPL", "GOOGL", "MSFT", "TSLA"}, symbols(up.Records)); diff != "" {
		t.Errorf("TestClientServer(tick): -want/+got:\n%s", diff)
	}

	if err := c.Toggle("AAPL"); err != nil {
		t.Fatal(err)
	}
	up = next(t, c)
	if diff := pretty.Compare([]string{"AAPL"}, symbols(up.Records)); diff != "" {
		t.Fatalf("TestClientServer(toggle): -want/+got:\n%s", diff)
	}
	if up.Records[0].IsEnabled {
		t.Errorf("TestClientServer(toggle): AAPL update still enabled")
	}
	if r, _ := tb.svc.Get("AAPL"); r.IsEnabled {
		t.Errorf("TestClientServer(toggle): AAPL still enabled on the board")
	}

	// The next tick moves everything but AAPL.
	if err := tb.svc.Tick(); err != nil {
		t.Fatal(err)
	}
	up = next(t, c)
	if diff := pretty.Compare([]string{"GOOGL", "MSFT", "TSLA"}, symbols(up.Records)); diff != "" {
		t.Errorf("TestClientServer(tick after toggle): -want/+got:\n%s", diff)
	}

	if err := c.Toggle("NOPE"); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-c.Errors:
		if !strings.Contains(err.Error(), "NOPE") {
			t.Errorf("TestClientServer(unknown toggle): got error %q", err)
		}
	case <-time.After(5 * time.Second):
		t.Errorf("TestClientServer(unknown toggle): no error from the server")
	}
}

func TestViewport(t *testing.T) {
	tb := newTestBoard(t)

	c, err := client.Dial(tb.addr())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	next(t, c)

	for width, want := range map[int]bool{400: true, 600: true, 800: false} {
		got, err := c.Viewport(width)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("TestViewport(%d): narrow = %v, want %v", width, got, want)
		}
	}

	if _, err := c.Viewport(0); err == nil {
		t.Errorf("TestViewport(0): got err == nil, want err != nil")
	}
}

func TestUpdatesCloseOnStop(t *testing.T) {
	tb := newTestBoard(t)

	c, err := client.Dial(tb.addr())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	next(t, c)

	tb.svc.Stop()

	select {
	case _, ok := <-c.Updates:
		if ok {
			t.Errorf("TestUpdatesCloseOnStop: got an update after Stop()")
		}
	case <-time.After(5 * time.Second):
		t.Errorf("TestUpdatesCloseOnStop: connection not closed after Stop()")
	}
}

func TestHTTP(t *testing.T) {
	tb := newTestBoard(t)

	get := func(path string) (int, []byte) {
		resp, err := http.Get(tb.srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatal(err)
		}
		return resp.StatusCode, b
	}
	post := func(path string) int {
		resp, err := http.Post(tb.srv.URL+path, "application/json", nil)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	code, body := get("/stocks")
	if code != http.StatusOK {
		t.Fatalf("TestHTTP(/stocks): got status %d", code)
	}
	var all []data.Record
	if err := json.Unmarshal(body, &all); err != nil {
		t.Fatal(err)
	}
	if diff := pretty.Compare(tb.svc.All(), all); diff != "" {
		t.Errorf("TestHTTP(/stocks): -want/+got:\n%s", diff)
	}

	code, body = get("/stocks/MSFT")
	if code != http.StatusOK {
		t.Fatalf("TestHTTP(/stocks/MSFT): got status %d", code)
	}
	var rec data.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		t.Fatal(err)
	}
	if rec.Symbol != "MSFT" {
		t.Errorf("TestHTTP(/stocks/MSFT): got symbol %s", rec.Symbol)
	}

	if code, _ := get("/stocks/NOPE"); code != http.StatusNotFound {
		t.Errorf("TestHTTP(/stocks/NOPE): got status %d, want 404", code)
	}

	if code := post("/stocks/MSFT/toggle"); code != http.StatusNoContent {
		t.Errorf("TestHTTP(toggle MSFT): got status %d, want 204", code)
	}
	if r, _ := tb.svc.Get("MSFT"); r.IsEnabled {
		t.Errorf("TestHTTP(toggle MSFT): MSFT still enabled")
	}
	if code := post("/stocks/NOPE/toggle"); code != http.StatusNotFound {
		t.Errorf("TestHTTP(toggle NOPE): got status %d, want 404", code)
	}

	if err := tb.svc.Tick(); err != nil {
		t.Fatal(err)
	}
	code, body = get("/metrics")
	if code != http.StatusOK {
		t.Fatalf("TestHTTP(/metrics): got status %d", code)
	}
	// Metrics are updated after the commit, off the Perform path.
	waitFor(t, "tick metric", func() bool {
		_, body = get("/metrics")
		return strings.Contains(string(body), "stockboard_ticks_total 1")
	})
	if !strings.Contains(string(body), "stockboard_toggles_total 1") {
		t.Errorf("TestHTTP(/metrics): toggle not counted:\n%s", body)
	}
}
