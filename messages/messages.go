// Package messages holds the client/server messages that are sent on the websocket in JSON format.
package messages

import (
	"encoding/json"
	"fmt"

	"github.com/johnsiilver/stockboard/state/data"
)

// ClientMsgType is the type of message being sent from a client.
type ClientMsgType int

const (
	// CMUnknown indicates that the message type is unknown. This means the code did not set
	// the Type.
	CMUnknown ClientMsgType = 0
	// CMToggle indicates the user wants to start or stop updates for a stock.
	CMToggle ClientMsgType = 1
	// CMViewport indicates the size of the user's view changed.
	CMViewport ClientMsgType = 2
)

// Client represents a message from the client.
type Client struct {
	// Type is the type of message.
	Type ClientMsgType

	// Symbol is the stock to toggle if Type == CMToggle.
	Symbol string `json:",omitempty"`

	// Width is the width of the view in pixels if Type == CMViewport.
	Width int `json:",omitempty"`
}

// Validate validates that the messsage is valid.
func (m Client) Validate() error {
	switch m.Type {
	case CMUnknown:
		return fmt.Errorf("client did not set the message type")
	case CMToggle:
		if m.Symbol == "" {
			return fmt.Errorf("client did not send a symbol to toggle")
		}
	case CMViewport:
		if m.Width <= 0 {
			return fmt.Errorf("client sent viewport width %d, must be positive", m.Width)
		}
	default:
		return fmt.Errorf("client sent unknown message type %d", m.Type)
	}
	return nil
}

// Marshal turns our message into JSON.
func (m Client) Marshal() []byte {
	b, err := json.Marshal(m)
	if err != nil {
		panic(err) // This should never happen.
	}
	return b
}

// Unmarshal takes a binary version of a message and turns it into a struct.
func (m *Client) Unmarshal(b []byte) error {
	return json.Unmarshal(b, m)
}

// ServerMsgType indicates the type of message being sent from the server.
type ServerMsgType int

const (
	// SMUnknown indicates that the message type is unknown.
	SMUnknown ServerMsgType = 0
	// SMError indicates that the server had some type of error.
	SMError ServerMsgType = 1
	// SMSnapshot holds every record on the board. It is the first message on a connection.
	SMSnapshot ServerMsgType = 2
	// SMUpdate holds the records that changed.
	SMUpdate ServerMsgType = 3
	// SMLayout answers a CMViewport.
	SMLayout ServerMsgType = 4
)

// Server is a message from the server.
type Server struct {
	// Type is the type of message we are sending.
	Type ServerMsgType

	// ID is the id of the server instance. Set on SMSnapshot and SMLayout.
	ID string `json:",omitempty"`

	// Records are the stock records if Type is SMSnapshot or SMUpdate.
	Records []data.Record `json:",omitempty"`

	// Narrow indicates the view should use the narrow layout if Type == SMLayout.
	Narrow bool `json:",omitempty"`

	// Text is the error text if Type == SMError.
	Text string `json:",omitempty"`
}

// Validate validates that the messsage is valid.
func (m Server) Validate() error {
	switch m.Type {
	case SMUnknown:
		return fmt.Errorf("server did not set the message type")
	case SMError:
		if m.Text == "" {
			return fmt.Errorf("server sent an error without text")
		}
	case SMSnapshot, SMUpdate:
		for _, r := range m.Records {
			if r.Symbol == "" {
				return fmt.Errorf("server sent a record without a symbol")
			}
		}
	case SMLayout:
	default:
		return fmt.Errorf("server sent unknown message type %d", m.Type)
	}
	return nil
}

// Marshal turns our message into JSON.
func (m Server) Marshal() []byte {
	b, err := json.Marshal(m)
	if err != nil {
		panic(err) // This should never happen.
	}
	return b
}

// Unmarshal takes a binary version of a message and turns it into a struct.
func (m *Server) Unmarshal(b []byte) error {
	return json.Unmarshal(b, m)
}
