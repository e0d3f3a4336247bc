package rpc

import (
	"context"
	"fmt"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Client is the broker side of the channel: it dials the endpoint and
// sends fire-and-forget notifications
type Client struct {
	conn *websocket.Conn
}

// Dial connects to a burrow JSON-RPC endpoint such as ws://host:8090/brokers
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	// Notifications never get an answer; let the library handle control frames.
	conn.CloseRead(context.Background())
	return &Client{conn: conn}, nil
}

// Notify sends a notification for method
func (c *Client) Notify(ctx context.Context, method string, params any) error {
	req, err := NewNotification(method, params)
	if err != nil {
		return err
	}
	if err := wsjson.Write(ctx, c.conn, req); err != nil {
		return fmt.Errorf("failed to send %s: %w", method, err)
	}
	return nil
}

// Close closes the connection
func (c *Client) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}
