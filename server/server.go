// Package server implements the HTTP and websocket front end of the stock board.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	"github.com/johnsiilver/stockboard"
	"github.com/johnsiilver/stockboard/messages"
	"github.com/johnsiilver/stockboard/state/data"
	"github.com/pborman/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNarrowWidth is the widest viewport, in pixels, that uses the narrow layout.
const DefaultNarrowWidth = 600

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Service is the stock board the server fronts. *market.Service satisfies it.
type Service interface {
	Get(symbol string) (data.Record, error)
	All() []data.Record
	Toggle(symbol string) error
	Subscribe(symbol string) (<-chan stockboard.Signal, stockboard.CancelFunc, error)
}

// Option is an optional argument to New().
type Option func(b *Board)

// WithNarrowWidth sets the widest viewport that uses the narrow layout.
func WithNarrowWidth(px int) Option {
	return func(b *Board) {
		b.narrowWidth = px
	}
}

// WithGatherer sets where /metrics reads from. The default is
// prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(b *Board) {
		b.gatherer = g
	}
}

// Board serves a stock board over HTTP. It implements http.Handler.
type Board struct {
	svc         Service
	id          string
	narrowWidth int
	gatherer    prometheus.Gatherer
	mux         *http.ServeMux
}

// New is the constructor for Board.
func New(svc Service, opts ...Option) (*Board, error) {
	b := &Board{
		svc:         svc,
		id:          uuid.New(),
		narrowWidth: DefaultNarrowWidth,
		gatherer:    prometheus.DefaultGatherer,
		mux:         http.NewServeMux(),
	}
	for _, o := range opts {
		o(b)
	}
	if b.narrowWidth <= 0 {
		return nil, fmt.Errorf("narrow width must be positive, was %d", b.narrowWidth)
	}

	b.mux.HandleFunc("GET /ws", b.Handler)
	b.mux.HandleFunc("GET /stocks", b.list)
	b.mux.HandleFunc("GET /stocks/{symbol}", b.get)
	b.mux.HandleFunc("POST /stocks/{symbol}/toggle", b.toggle)
	b.mux.Handle("GET /metrics", promhttp.HandlerFor(b.gatherer, promhttp.HandlerOpts{}))
	return b, nil
}

// ID is the id of this server instance.
func (b *Board) ID() string {
	return b.id
}

// Narrow reports if a viewport of width pixels uses the narrow layout.
func (b *Board) Narrow(width int) bool {
	return width <= b.narrowWidth
}

// ServeHTTP implements http.Handler.
func (b *Board) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mux.ServeHTTP(w, r)
}

func (b *Board) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, b.svc.All())
}

func (b *Board) get(w http.ResponseWriter, r *http.Request) {
	rec, err := b.svc.Get(r.PathValue("symbol"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (b *Board) toggle(w http.ResponseWriter, r *http.Request) {
	sym := r.PathValue("symbol")
	if _, err := b.svc.Get(sym); err != nil {
		httpError(w, err)
		return
	}
	if err := b.svc.Toggle(sym); err != nil {
		httpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, stockboard.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, stockboard.ErrStopped):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		glog.Errorf("problem serving request: %s", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		glog.Errorf("problem writing JSON response: %s", err)
	}
}

// conn is a websocket connection. gorilla/websocket allows one writer at a time.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

// Handler upgrades the request to a websocket. The client gets a snapshot of
// the board and then an update for every change until either side hangs up.
func (b *Board) Handler(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Errorf("error connecting to server: %s", err)
		return
	}
	c := &conn{ws: ws}
	defer ws.Close()

	// Subscribe before the snapshot so no change falls between the two.
	ch, cancel, err := b.svc.Subscribe(stockboard.Any)
	if err != nil {
		b.sendError(c, err)
		return
	}

	if err := c.write(messages.Server{Type: messages.SMSnapshot, ID: b.id, Records: b.svc.All()}); err != nil {
		glog.Errorf("problem writing snapshot to %s: %s", ws.RemoteAddr(), err)
		cancel()
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.clientSender(c, ch)
		// Unblocks clientReceiver if the sender ended first.
		ws.Close()
	}()

	b.clientReceiver(c)
	cancel()
	<-done
}

// clientReceiver processes messages from the client until the connection ends.
func (b *Board) clientReceiver(c *conn) {
	for {
		m := messages.Client{}
		if err := c.ws.ReadJSON(&m); err != nil {
			glog.V(1).Infof("client %s terminated its connection: %s", c.ws.RemoteAddr(), err)
			return
		}

		if err := m.Validate(); err != nil {
			if err = b.sendError(c, err); err != nil {
				return
			}
			continue
		}

		var err error
		switch m.Type {
		case messages.CMToggle:
			if _, err = b.svc.Get(m.Symbol); err == nil {
				err = b.svc.Toggle(m.Symbol)
			}
			if err != nil {
				err = b.sendError(c, err)
			}
		case messages.CMViewport:
			err = c.write(messages.Server{Type: messages.SMLayout, ID: b.id, Narrow: b.Narrow(m.Width)})
		}
		if err != nil {
			return
		}
	}
}

// clientSender pushes every store change to the client. It returns when the
// subscription is cancelled, the store stops or a write fails.
func (b *Board) clientSender(c *conn, ch <-chan stockboard.Signal) {
	for sig := range ch {
		recs := make([]data.Record, 0, len(sig.Symbols))
		for _, sym := range sig.Symbols {
			if r, ok := sig.Record(sym); ok {
				recs = append(recs, r)
			}
		}
		if err := c.write(messages.Server{Type: messages.SMUpdate, Records: recs}); err != nil {
			glog.Errorf("error sending update to client %s: %s", c.ws.RemoteAddr(), err)
			return
		}
	}
}

func (b *Board) sendError(c *conn, err error) error {
	glog.Error(err)
	return c.write(messages.Server{Type: messages.SMError, Text: err.Error()})
}

// write writes a Message to the websocket.
func (c *conn) write(msg messages.Server) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	defer c.ws.SetWriteDeadline(time.Time{})
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteJSON(msg); err != nil {
		return fmt.Errorf("problem writing msg: %s", err)
	}
	return nil
}
