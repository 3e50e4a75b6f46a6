/*
Package client provides a client for watching a stock board server over a websocket.

Usage is simple:

	c, err := client.Dial("<host:port>")
	if err != nil {
		// Do something
	}
	defer c.Close()

	// Stop updates for AAPL.
	if err := c.Toggle("AAPL"); err != nil {
		// Do something
	}

	// The first message is a snapshot of the whole board, then updates.
	for m := range c.Updates {
		for _, r := range m.Records {
			fmt.Println(r.Symbol, r.Price)
		}
	}
*/
package client

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	"github.com/johnsiilver/stockboard/messages"
)

const replyTimeout = 5 * time.Second

// Board is a client for the stock board server.
type Board struct {
	conn *websocket.Conn

	// mu allows only a single writer on conn.
	mu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}

	layout chan messages.Server

	// Updates receives the SMSnapshot and SMUpdate messages from the server.
	// It is closed when the connection ends.
	Updates chan messages.Server
	// Errors receives errors the server reports.
	Errors chan error
}

// Dial connects to a stock board server at addr.
func Dial(addr string) (*Board, error) {
	d := websocket.Dialer{
		HandshakeTimeout:  10 * time.Second,
		ReadBufferSize:    1024,
		WriteBufferSize:   1024,
		EnableCompression: true,
	}
	conn, resp, err := d.Dial(fmt.Sprintf("ws://%s/ws", addr), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("problem connecting to server: %s status: %s", resp.Status, err)
		}
		return nil, fmt.Errorf("problem connecting to server: %s", err)
	}

	c := &Board{
		conn:    conn,
		done:    make(chan struct{}),
		layout:  make(chan messages.Server, 1),
		Updates: make(chan messages.Server, 100),
		Errors:  make(chan error, 10),
	}

	go c.serverReceiver()
	return c, nil
}

func (c *Board) serverReceiver() {
	defer close(c.Updates)

	for {
		sm := messages.Server{}
		if err := c.conn.ReadJSON(&sm); err != nil {
			select {
			case <-c.done:
			default:
				glog.Errorf("problem reading message from server, killing the client connection: %s", err)
			}
			return
		}

		switch sm.Type {
		case messages.SMSnapshot, messages.SMUpdate:
			select {
			case c.Updates <- sm:
			case <-c.done:
				return
			}
		case messages.SMLayout:
			select {
			case c.layout <- sm:
			default:
				glog.Infof("dropping layout reply nobody asked for")
			}
		case messages.SMError:
			select {
			case c.Errors <- errors.New(sm.Text):
			default:
				glog.Errorf("server error dropped, Errors is full: %s", sm.Text)
			}
		default:
			glog.Infof("dropping message of type %v, I don't understand the type", sm.Type)
		}
	}
}

func (c *Board) write(msg messages.Client) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("connection to server is broken, this client is dead: %s", err)
	}
	return nil
}

// Toggle starts or stops updates for symbol. An unknown symbol is reported
// on Errors.
func (c *Board) Toggle(symbol string) error {
	return c.write(messages.Client{Type: messages.CMToggle, Symbol: symbol})
}

// Viewport tells the server the view is width pixels wide and returns if the
// view should use the narrow layout.
func (c *Board) Viewport(width int) (narrow bool, err error) {
	if err := c.write(messages.Client{Type: messages.CMViewport, Width: width}); err != nil {
		return false, err
	}

	select {
	case m := <-c.layout:
		return m.Narrow, nil
	case <-c.done:
		return false, fmt.Errorf("client is closed")
	case <-time.After(replyTimeout):
		return false, fmt.Errorf("never received a layout reply")
	}
}

// Close closes the connection to the server.
func (c *Board) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}
