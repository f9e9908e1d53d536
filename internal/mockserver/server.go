// Package mockserver is an in-process notification server for tests and
// local development. It accepts WebSocket clients, records their tokens and
// subscriptions, and pushes notifications to subscribed channels.
package mockserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/rickgao/notify-channel/internal/notification"
	"github.com/rickgao/notify-channel/internal/subscription"
	"github.com/rickgao/notify-channel/internal/transport"
)

// client is one accepted connection.
type client struct {
	conn  *websocket.Conn
	token string

	writeMu  sync.Mutex
	mu       sync.Mutex
	channels map[string]struct{}
}

func (c *client) write(f transport.Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *client) subscribed(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.channels[channel]
	return ok
}

// Server is a mock notification server. It implements http.Handler.
type Server struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu           sync.Mutex
	clients      map[*client]struct{}
	tokens       []string
	subscribes   []string
	unsubscribes []string
	connects     int
	reject       int // HTTP status to refuse upgrades with, 0 = accept
}

// New creates a mock server.
func New(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and serves the client until it leaves.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	reject := s.reject
	s.mu.Unlock()
	if reject != 0 {
		http.Error(w, http.StatusText(reject), reject)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "error", err)
		return
	}

	c := &client{
		conn:     conn,
		token:    requestToken(r),
		channels: make(map[string]struct{}),
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.tokens = append(s.tokens, c.token)
	s.connects++
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		conn.Close()
	}()

	s.readLoop(c)
}

func (s *Server) readLoop(c *client) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var f transport.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			s.logger.Debug("ignoring malformed frame", "error", err)
			continue
		}

		var channel string
		if len(f.Data) > 0 {
			if err := json.Unmarshal(f.Data, &channel); err != nil {
				s.logger.Debug("ignoring non-string channel", "event", f.Event)
				continue
			}
		}

		switch f.Event {
		case subscription.EventSubscribe:
			c.mu.Lock()
			c.channels[channel] = struct{}{}
			c.mu.Unlock()
			s.mu.Lock()
			s.subscribes = append(s.subscribes, channel)
			s.mu.Unlock()
		case subscription.EventUnsubscribe:
			c.mu.Lock()
			delete(c.channels, channel)
			c.mu.Unlock()
			s.mu.Lock()
			s.unsubscribes = append(s.unsubscribes, channel)
			s.mu.Unlock()
		}
	}
}

func requestToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// Reject makes the server refuse new upgrades with status. Zero accepts again.
func (s *Server) Reject(status int) {
	s.mu.Lock()
	s.reject = status
	s.mu.Unlock()
}

// Notify pushes env to every client subscribed to userID's channel and
// returns the number of clients reached.
func (s *Server) Notify(userID string, env notification.Envelope) int {
	payload, err := notification.Encode(env)
	if err != nil {
		s.logger.Warn("encode notification", "error", err)
		return 0
	}
	f := transport.Frame{Event: notification.EventName(env.Kind), Data: payload}

	channel := subscription.ChannelName(userID)
	n := 0
	for _, c := range s.snapshot() {
		if !c.subscribed(channel) {
			continue
		}
		if err := c.write(f); err != nil {
			s.logger.Debug("push failed", "error", err)
			continue
		}
		n++
	}
	return n
}

// Broadcast sends a raw frame to every connected client.
func (s *Server) Broadcast(f transport.Frame) int {
	n := 0
	for _, c := range s.snapshot() {
		if err := c.write(f); err == nil {
			n++
		}
	}
	return n
}

// DropAll closes every client connection without a close handshake.
func (s *Server) DropAll() int {
	clients := s.snapshot()
	for _, c := range clients {
		c.conn.Close()
	}
	return len(clients)
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Connects returns the number of accepted upgrades.
func (s *Server) Connects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

// Tokens returns the token presented by each accepted client, in order.
func (s *Server) Tokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tokens...)
}

// Subscribes returns every channel subscribed, in order.
func (s *Server) Subscribes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.subscribes...)
}

// Unsubscribes returns every channel unsubscribed, in order.
func (s *Server) Unsubscribes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.unsubscribes...)
}

func (s *Server) snapshot() []*client {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		out = append(out, c)
	}
	return out
}
