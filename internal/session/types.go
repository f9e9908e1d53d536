package session

import (
	"errors"
	"time"

	"github.com/rickgao/notify-channel/internal/backoff"
	"github.com/rickgao/notify-channel/internal/dispatch"
	"github.com/rickgao/notify-channel/internal/identity"
	"github.com/rickgao/notify-channel/internal/notification"
	"github.com/rickgao/notify-channel/internal/subscription"
	"github.com/rickgao/notify-channel/internal/transport"
)

// Errors
var (
	ErrNoDialer  = errors.New("session has no dialer")
	ErrNotActive = errors.New("session not connected")
)

// Status is the connection status of a session.
type Status int

const (
	Disconnected Status = iota
	Connecting
	Connected
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// State is a snapshot of the session.
type State struct {
	Status      Status
	UserID      string    // Identity captured at the last (re)start
	HasToken    bool      // Whether a token was presented
	Generation  uint64    // Connection generation, incremented per established link
	ConnectedAt time.Time // Zero unless Status is Connected
}

// Recorder receives session metrics. A nil Recorder records nothing.
type Recorder interface {
	SetConnected(connected bool)
	Connected()
	Disconnected()
	DialFailed()
	ReconnectAttempt()
	Subscribed()
	NotificationDispatched(kind notification.Kind, handlers int)
	HandlerPanicked(kind notification.Kind)
}

type nopRecorder struct{}

func (nopRecorder) SetConnected(bool)                             {}
func (nopRecorder) Connected()                                    {}
func (nopRecorder) Disconnected()                                 {}
func (nopRecorder) DialFailed()                                   {}
func (nopRecorder) ReconnectAttempt()                             {}
func (nopRecorder) Subscribed()                                   {}
func (nopRecorder) NotificationDispatched(notification.Kind, int) {}
func (nopRecorder) HandlerPanicked(notification.Kind)             {}

// Config wires a session to its collaborators.
type Config struct {
	Dialer        transport.Dialer
	Identity      identity.Store // nil = anonymous
	Backoff       backoff.Policy
	Dispatcher    *dispatch.Dispatcher  // nil = session-owned
	Observers     *dispatch.Observers   // nil = session-owned
	Subscriptions *subscription.Manager // nil = session-owned
	Metrics       Recorder
}
