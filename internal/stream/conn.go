package stream

import (
	"context"

	"github.com/coder/websocket"
)

// Conn is a single stream transport connection.
type Conn interface {
	// Read blocks until the next inbound frame arrives.
	Read(ctx context.Context) ([]byte, error)
	// Write sends one outbound frame.
	Write(ctx context.Context, data []byte) error
	Close() error
}

// Dialer opens stream connections. The controller takes it as an interface
// so tests can substitute an in-memory transport.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebSocketDialer dials real WebSocket connections.
type WebSocketDialer struct{}

// Dial opens a WebSocket connection to the given URL.
func (WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &wsConn{c: c}, nil
}

type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := w.c.Read(ctx)
	return data, err
}

func (w *wsConn) Write(ctx context.Context, data []byte) error {
	return w.c.Write(ctx, websocket.MessageText, data)
}

func (w *wsConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "")
}
