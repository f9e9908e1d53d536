package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrClosed          = errors.New("connection closed")
)

// Frame is a single event on the wire.
type Frame struct {
	Event      string          `json:"event"`
	Data       json.RawMessage `json:"data,omitempty"`
	ReceivedAt time.Time       `json:"-"` // Local receive time (inbound only)
}

// NewFrame builds a frame with data marshaled to JSON.
func NewFrame(event string, data any) (Frame, error) {
	if data == nil {
		return Frame{Event: event}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, fmt.Errorf("marshal %s data: %w", event, err)
	}
	return Frame{Event: event, Data: raw}, nil
}

// Conn is one established link.
type Conn interface {
	// Send writes a frame to the server.
	Send(f Frame) error

	// Frames returns inbound frames in arrival order. Closed when the link ends.
	Frames() <-chan Frame

	// Err returns why the link ended, nil while it is up.
	Err() error

	// Close tears the link down. Safe to call more than once.
	Close() error

	// IsConnected returns current connection state.
	IsConnected() bool
}

// Dialer establishes links. The token is presented during the handshake;
// an empty token dials anonymously.
type Dialer interface {
	Dial(ctx context.Context, token string) (Conn, error)
}

// Config configures the WebSocket dialer.
type Config struct {
	URL              string        // Server base URL (ws://, wss://, http:// or https://)
	Path             string        // Upgrade path appended to URL (e.g. /ws)
	HandshakeTimeout time.Duration // Dial + upgrade deadline
	WriteTimeout     time.Duration // Write deadline for sends
	PingInterval     time.Duration // Client keepalive ping period
	PingTimeout      time.Duration // Max time without ping/pong before the link is stale
	BufferSize       int           // Inbound frame channel buffer
	UserAgent        string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Path:             "/ws",
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		PingInterval:     25 * time.Second,
		PingTimeout:      60 * time.Second,
		BufferSize:       256,
		UserAgent:        "notify-channel",
	}
}
