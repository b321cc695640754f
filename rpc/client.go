package rpc

import (
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/farcasterd/swapd/bus"
)

// Client is swapcli's connection to a running swapd's rpc.Server.
type Client struct {
	conn *websocket.Conn
}

// Dial connects to addr (host:port, no scheme) over ws://.
func Dial(addr string) (*Client, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("rpc: dialing %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

// Call sends req and waits for the first reply, matching the CLI's
// one-request-one-response usage of the bus's Ctl/Info lanes.
func (c *Client) Call(req bus.BusMsg, timeout time.Duration) (bus.BusMsg, error) {
	encoded, err := bus.EncodeBytes(req)
	if err != nil {
		return nil, fmt.Errorf("rpc: encoding %T: %w", req, err)
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, encoded); err != nil {
		return nil, fmt.Errorf("rpc: sending %T: %w", req, err)
	}

	c.conn.SetReadDeadline(time.Now().Add(timeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("rpc: waiting for reply: %w", err)
	}
	return bus.DecodeBytes(data)
}
