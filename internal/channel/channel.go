// Package channel is the application-facing entry point of the realtime
// notification client. A Channel lazily owns one session, keeps listener
// registrations across disconnects, and reports connection status.
package channel

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rickgao/notify-channel/internal/backoff"
	"github.com/rickgao/notify-channel/internal/dispatch"
	"github.com/rickgao/notify-channel/internal/identity"
	"github.com/rickgao/notify-channel/internal/notification"
	"github.com/rickgao/notify-channel/internal/session"
	"github.com/rickgao/notify-channel/internal/subscription"
	"github.com/rickgao/notify-channel/internal/transport"
)

// Options tunes a Channel.
type Options struct {
	Backoff backoff.Policy
	Metrics session.Recorder // nil = no metrics
}

// DefaultOptions returns the reconnect schedule used by the web client.
func DefaultOptions() Options {
	return Options{Backoff: backoff.DefaultPolicy()}
}

// Channel is the realtime notification facade.
type Channel struct {
	dialer     transport.Dialer
	store      identity.Store
	opts       Options
	logger     *slog.Logger
	dispatcher *dispatch.Dispatcher
	observers  *dispatch.Observers
	subs       *subscription.Manager

	mu     sync.Mutex
	sess   *session.Session
	manual bool // Disconnect was called and no reconnect requested since
}

// New creates a Channel. No connection is made until CreateConnection.
func New(dialer transport.Dialer, store identity.Store, opts Options, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "channel")

	return &Channel{
		dialer:     dialer,
		store:      store,
		opts:       opts,
		logger:     logger,
		dispatcher: dispatch.NewDispatcher(),
		observers:  dispatch.NewObservers(),
		subs:       subscription.NewManager(logger),
	}
}

// CreateConnection returns the channel's session, creating and starting it
// on first use. While the session is running later calls return it without
// a new handshake; after Disconnect the same session is restarted with a
// freshly loaded identity.
func (c *Channel) CreateConnection(ctx context.Context) (*session.Session, error) {
	c.mu.Lock()
	if c.sess == nil {
		c.sess = session.New(session.Config{
			Dialer:        c.dialer,
			Identity:      c.store,
			Backoff:       c.opts.Backoff,
			Dispatcher:    c.dispatcher,
			Observers:     c.observers,
			Subscriptions: c.subs,
			Metrics:       c.opts.Metrics,
		}, c.logger)
		c.logger.Debug("session created", "session", c.sess.ID())
	}
	sess := c.sess
	c.manual = false
	c.mu.Unlock()

	if err := sess.Start(ctx); err != nil {
		return nil, err
	}
	return sess, nil
}

// Connect clears a previous manual disconnect and (re)starts the session.
func (c *Channel) Connect(ctx context.Context) error {
	_, err := c.CreateConnection(ctx)
	return err
}

// Disconnect tears down the connection and waits for it to close. Listeners
// stay registered and no reconnect is attempted until CreateConnection or
// Connect. Calling it when not connected does nothing.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	sess := c.sess
	if sess != nil {
		c.manual = true
	}
	c.mu.Unlock()

	if sess == nil {
		return
	}
	sess.Stop()
}

// Status reports whether the channel is connected. It is false before the
// first CreateConnection.
func (c *Channel) Status() bool {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	return sess != nil && sess.IsConnected()
}

// ManuallyDisconnected reports whether Disconnect was the last lifecycle call.
func (c *Channel) ManuallyDisconnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manual
}

// Session returns the session, or nil before CreateConnection.
func (c *Channel) Session() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// OnNotification registers handler for one notification kind. Handlers may
// be registered before any connection exists.
func (c *Channel) OnNotification(kind notification.Kind, handler func(notification.Envelope)) dispatch.Disposer {
	return c.dispatcher.On(kind, handler)
}

// OnConnectionChange registers a callback for connect (true) and disconnect
// (false) transitions.
func (c *Channel) OnConnectionChange(handler func(connected bool)) dispatch.Disposer {
	return c.observers.Add(handler)
}

// Unsubscribe asks the server to stop sending the current user's
// notifications on the live connection.
func (c *Channel) Unsubscribe() error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()

	if sess == nil {
		return session.ErrNotActive
	}
	return sess.Unsubscribe()
}
