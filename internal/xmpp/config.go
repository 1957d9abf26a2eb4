package xmpp

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/meszmate/wsroster/internal/xmpp/jid"
)

// MaxReconnectAttempts bounds automatic reconnection after a lost transport.
const MaxReconnectAttempts = 5

// DefaultReconnectInterval is used when Config.ReconnectInterval is zero.
const DefaultReconnectInterval = 5 * time.Second

const websocketPath = "/xmpp-websocket"

// ErrInvalidConfig is returned by Connect for unusable configuration.
var ErrInvalidConfig = errors.New("xmpp: invalid configuration")

// Config describes one connection. It is copied when an attempt starts.
type Config struct {
	// ServiceURL is the transport endpoint, either ws(s):// or http(s)://host.
	ServiceURL string
	// JID is the account address, local@domain[/resource].
	JID      string
	Password string
	// Resource overrides the resource to bind. When empty the resource of JID
	// is used, or one is generated.
	Resource string
	// Timeout bounds the handshake. Zero means no limit.
	Timeout           time.Duration
	AutoReconnect     bool
	ReconnectInterval time.Duration
}

// Validate checks that c can start a connection attempt.
func (c Config) Validate() error {
	if c.ServiceURL == "" {
		return fmt.Errorf("%w: service URL is required", ErrInvalidConfig)
	}
	if err := jid.Validate(c.JID); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Timeout < 0 || c.ReconnectInterval < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	}
	return nil
}

func (c Config) reconnectInterval() time.Duration {
	if c.ReconnectInterval <= 0 {
		return DefaultReconnectInterval
	}
	return c.ReconnectInterval
}

func (c Config) resource() string {
	if c.Resource != "" {
		return c.Resource
	}
	return jid.Parse(c.JID).Resource
}

// WebSocketURL returns the WebSocket endpoint for a service address. ws:// and
// wss:// addresses are used as given; http(s):// or bare hosts get the
// standard XMPP WebSocket path, over wss unless http:// was given.
func WebSocketURL(service string) string {
	if strings.HasPrefix(service, "ws://") || strings.HasPrefix(service, "wss://") {
		return service
	}

	scheme := "wss://"
	if strings.HasPrefix(service, "http://") {
		scheme = "ws://"
	}
	host := strings.TrimPrefix(service, "https://")
	host = strings.TrimPrefix(host, "http://")
	return scheme + strings.TrimSuffix(host, "/") + websocketPath
}

// Status is the connection lifecycle state.
type Status string

const (
	StatusDisconnected   Status = "disconnected"
	StatusConnecting     Status = "connecting"
	StatusConnected      Status = "connected"
	StatusAuthenticating Status = "authenticating"
	StatusAuthenticated  Status = "authenticated"
	StatusDisconnecting  Status = "disconnecting"
	StatusError          Status = "error"
)

var statusNames = []string{
	string(StatusDisconnected),
	string(StatusConnecting),
	string(StatusConnected),
	string(StatusAuthenticating),
	string(StatusAuthenticated),
	string(StatusDisconnecting),
	string(StatusError),
}

func (s Status) String() string {
	return string(s)
}
