// Package websocket carries XMPP frames over RFC 7395 WebSocket connections.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/meszmate/wsroster/internal/xmpp"
)

// Subprotocol is the WebSocket subprotocol negotiated for XMPP.
const Subprotocol = "xmpp"

// ErrClosed is returned by reads and writes after Close.
var ErrClosed = errors.New("websocket: connection closed")

// Dialer opens XMPP WebSocket connections.
type Dialer struct {
	// HandshakeTimeout bounds the HTTP upgrade when ctx has no deadline.
	HandshakeTimeout time.Duration
	// Header is sent with the upgrade request.
	Header http.Header
}

// NewDialer returns a Dialer with default settings.
func NewDialer() *Dialer {
	return &Dialer{HandshakeTimeout: 30 * time.Second}
}

// Dial connects to url and requires the server to accept the xmpp subprotocol.
func (d *Dialer) Dial(ctx context.Context, url string) (xmpp.Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
		Subprotocols:     []string{Subprotocol},
	}

	ws, resp, err := dialer.DialContext(ctx, url, d.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	if ws.Subprotocol() != Subprotocol {
		ws.Close()
		return nil, fmt.Errorf("server at %s did not accept the %q subprotocol", url, Subprotocol)
	}
	return NewConn(ws), nil
}

// Conn adapts a gorilla connection to xmpp.Conn.
type Conn struct {
	ws *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// NewConn wraps ws.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws, closed: make(chan struct{})}
}

// ReadFrame returns the next text frame. Cancelling ctx closes the connection.
func (c *Conn) ReadFrame(ctx context.Context) (string, error) {
	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	for {
		typ, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
				return "", ErrClosed
			default:
			}
			return "", err
		}
		if typ == websocket.TextMessage {
			return string(data), nil
		}
	}
}

// WriteFrame sends frame as one text message.
func (c *Conn) WriteFrame(ctx context.Context, frame string) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		c.ws.SetWriteDeadline(deadline)
		defer c.ws.SetWriteDeadline(time.Time{})
	}
	return c.ws.WriteMessage(websocket.TextMessage, []byte(frame))
}

// Close sends a close frame and releases the connection. It is safe to call
// more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.writeMu.Lock()
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}
