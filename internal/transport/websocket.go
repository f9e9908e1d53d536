package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSDialer dials WebSocket links.
type WSDialer struct {
	cfg    Config
	logger *slog.Logger
}

// NewWSDialer creates a WebSocket dialer.
func NewWSDialer(cfg Config, logger *slog.Logger) *WSDialer {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.PingTimeout == 0 {
		cfg.PingTimeout = def.PingTimeout
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = def.BufferSize
	}
	return &WSDialer{cfg: cfg, logger: logger}
}

// Endpoint builds the dial URL for a token.
func (d *WSDialer) Endpoint(token string) (string, error) {
	raw := d.cfg.URL
	switch {
	case strings.HasPrefix(raw, "https://"):
		raw = "wss://" + strings.TrimPrefix(raw, "https://")
	case strings.HasPrefix(raw, "http://"):
		raw = "ws://" + strings.TrimPrefix(raw, "http://")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + d.cfg.Path
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Dial establishes a link, authenticating with token when set.
func (d *WSDialer) Dial(ctx context.Context, token string) (Conn, error) {
	endpoint, err := d.Endpoint(token)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Accept", "application/json")
	if d.cfg.UserAgent != "" {
		header.Set("User-Agent", d.cfg.UserAgent)
	}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: d.cfg.HandshakeTimeout,
	}

	ws, resp, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	c := newWSConn(ws, d.cfg, d.logger)
	c.start()

	d.logger.Debug("websocket connected", "url", d.cfg.URL+d.cfg.Path)
	return c, nil
}

// wsConn implements Conn over a gorilla WebSocket.
type wsConn struct {
	cfg    Config
	logger *slog.Logger
	ws     *websocket.Conn

	frames chan Frame
	done   chan struct{}

	// Write serialization
	writeMu sync.Mutex

	// State
	mu         sync.RWMutex
	connected  bool
	lastPingAt time.Time
	err        error
	closeOnce  sync.Once
}

func newWSConn(ws *websocket.Conn, cfg Config, logger *slog.Logger) *wsConn {
	return &wsConn{
		cfg:        cfg,
		logger:     logger,
		ws:         ws,
		frames:     make(chan Frame, cfg.BufferSize),
		done:       make(chan struct{}),
		connected:  true,
		lastPingAt: time.Now(),
	}
}

// start installs keepalive handlers and launches the read and heartbeat loops.
func (c *wsConn) start() {
	// Server sends ping, we respond with pong
	c.ws.SetPingHandler(func(data string) error {
		c.touch()
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return c.ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	// Server answers our ping
	c.ws.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})

	go c.readLoop()
	go c.heartbeatLoop()
}

func (c *wsConn) touch() {
	c.mu.Lock()
	c.lastPingAt = time.Now()
	c.mu.Unlock()
}

// Send writes a frame as a text message.
func (c *wsConn) Send(f Frame) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s: %w", f.Event, err)
	}
	return nil
}

// Frames returns the inbound frame channel.
func (c *wsConn) Frames() <-chan Frame {
	return c.frames
}

// Err returns why the link ended.
func (c *wsConn) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// IsConnected returns the current connection state.
func (c *wsConn) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Close gracefully closes the link.
func (c *wsConn) Close() error {
	return c.shutdown(ErrClosed)
}

// shutdown records the first reason the link ended and closes the socket.
func (c *wsConn) shutdown(reason error) error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.connected = false
		if c.err == nil {
			c.err = reason
		}
		c.mu.Unlock()

		close(c.done)

		c.writeMu.Lock()
		c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()

		err = c.ws.Close()
	})
	return err
}

// readLoop decodes frames until the socket fails, then closes Frames.
func (c *wsConn) readLoop() {
	defer close(c.frames)

	for {
		_, data, err := c.ws.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			select {
			case <-c.done:
				// Closed locally, reason already recorded
			default:
				c.logger.Debug("websocket read failed", "error", err)
				c.shutdown(err)
			}
			return
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil || f.Event == "" {
			c.logger.Warn("dropping malformed frame", "error", err, "bytes", len(data))
			continue
		}
		f.ReceivedAt = receivedAt

		// Never drop: ordering matters more than a slow consumer
		select {
		case c.frames <- f:
		case <-c.done:
			return
		}
	}
}

// heartbeatLoop pings the server and detects stale links.
func (c *wsConn) heartbeatLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
			}
			c.writeMu.Unlock()

			c.mu.RLock()
			lastPing := c.lastPingAt
			c.mu.RUnlock()

			if time.Since(lastPing) > c.cfg.PingTimeout {
				c.logger.Warn("no ping received, connection stale",
					"last_ping", lastPing,
					"timeout", c.cfg.PingTimeout,
				)
				c.shutdown(ErrStaleConnection)
				return
			}
		}
	}
}
