// Package client calls the pin operations served by gpiod.
package client

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fkcurrie/bcmgpio/internal/dispatch"
	"github.com/fkcurrie/bcmgpio/internal/types"
	"github.com/fkcurrie/bcmgpio/pkg/gpio"
)

const callTimeout = 10 * time.Second

// Client represents a gpiod WebSocket client
type Client struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	nextID uint64
}

// Dial connects to the gpiod server at addr (host:port).
func Dial(ctx context.Context, addr string) (*Client, error) {
	u := url.URL{
		Scheme: "ws",
		Host:   addr,
		Path:   "/gpio",
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to gpiod: %w", err)
	}

	return &Client{conn: conn}, nil
}

// Close closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.conn.Close()
}

// Call sends req and waits for its response. The request ID is assigned
// by the client.
func (c *Client) Call(req types.Request) (types.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	req.ID = c.nextID

	c.conn.SetWriteDeadline(time.Now().Add(callTimeout))
	if err := c.conn.WriteJSON(req); err != nil {
		return types.Response{}, fmt.Errorf("failed to send %s: %w", req.Op, err)
	}

	c.conn.SetReadDeadline(time.Now().Add(callTimeout))
	var resp types.Response
	if err := c.conn.ReadJSON(&resp); err != nil {
		return types.Response{}, fmt.Errorf("failed to read %s response: %w", req.Op, err)
	}
	if resp.ID != req.ID {
		return resp, fmt.Errorf("response id %d does not match request %d", resp.ID, req.ID)
	}
	return resp, nil
}

// Configure sets pin as an input or an output.
func (c *Client) Configure(pin int, mode gpio.Mode) error {
	resp, err := c.Call(types.Request{Op: types.OpConfigure, Pin: pin, Arg: int(mode)})
	if err != nil {
		return err
	}
	return dispatch.Err(resp.Result)
}

// Write drives pin to level.
func (c *Client) Write(pin int, level gpio.Level) error {
	resp, err := c.Call(types.Request{Op: types.OpWrite, Pin: pin, Arg: int(level)})
	if err != nil {
		return err
	}
	return dispatch.Err(resp.Result)
}

// Read returns the level of pin.
func (c *Client) Read(pin int) (gpio.Level, error) {
	resp, err := c.Call(types.Request{Op: types.OpRead, Pin: pin})
	if err != nil {
		return gpio.Low, err
	}
	if err := dispatch.Err(resp.Result); err != nil {
		return gpio.Low, err
	}
	return gpio.Level(resp.Result), nil
}
