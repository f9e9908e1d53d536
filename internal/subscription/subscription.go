// Package subscription issues the per-user channel subscription over a
// transport link. The server does not remember subscriptions across a
// dropped link, so the session re-asserts it on every new connection.
package subscription

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rickgao/notify-channel/internal/transport"
)

// Wire event names.
const (
	EventSubscribe   = "subscribe"
	EventUnsubscribe = "unsubscribe"
)

// ErrNoLink is returned when no connection is available.
var ErrNoLink = errors.New("no connection to subscribe on")

// ChannelName returns the per-user channel, "user:" + userID.
func ChannelName(userID string) string {
	return "user:" + userID
}

// Sender writes frames to the current link.
type Sender interface {
	Send(f transport.Frame) error
}

// Manager tracks which channel has been subscribed on which connection
// generation so repeated calls for the same connection send nothing.
type Manager struct {
	logger *slog.Logger

	mu         sync.Mutex
	generation uint64 // Connection generation of the last successful subscribe
	channel    string // Channel of the last successful subscribe
	sent       int64
}

// NewManager creates a subscription manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger}
}

// Subscribe sends one subscribe request for userID's channel on the
// connection identified by generation. It reports whether a frame was sent;
// a repeat for the same generation and channel is a no-op.
func (m *Manager) Subscribe(conn Sender, generation uint64, userID string) (bool, error) {
	if conn == nil {
		return false, ErrNoLink
	}

	channel := ChannelName(userID)
	if userID == "" {
		m.logger.Warn("subscribing without a user id", "channel", channel)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if generation != 0 && m.generation == generation && m.channel == channel {
		return false, nil
	}

	f, err := transport.NewFrame(EventSubscribe, channel)
	if err != nil {
		return false, err
	}
	if err := conn.Send(f); err != nil {
		return false, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	m.generation = generation
	m.channel = channel
	m.sent++

	m.logger.Debug("subscribed", "channel", channel, "generation", generation)
	return true, nil
}

// Unsubscribe sends an unsubscribe request for userID's channel.
func (m *Manager) Unsubscribe(conn Sender, userID string) error {
	if conn == nil {
		return ErrNoLink
	}

	channel := ChannelName(userID)
	f, err := transport.NewFrame(EventUnsubscribe, channel)
	if err != nil {
		return err
	}
	if err := conn.Send(f); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", channel, err)
	}

	m.mu.Lock()
	if m.channel == channel {
		m.generation = 0
		m.channel = ""
	}
	m.mu.Unlock()

	m.logger.Debug("unsubscribed", "channel", channel)
	return nil
}

// Sent returns the number of subscribe frames sent.
func (m *Manager) Sent() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent
}
