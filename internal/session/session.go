// Package session owns one logical connection to the notification server.
//
// A single run-loop goroutine dials, subscribes, reads frames, dispatches
// notifications and reconnects with backoff. Every listener callback runs
// on that goroutine, so notifications are delivered one at a time in
// arrival order and connection changes are never interleaved with them.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/notify-channel/internal/backoff"
	"github.com/rickgao/notify-channel/internal/dispatch"
	"github.com/rickgao/notify-channel/internal/identity"
	"github.com/rickgao/notify-channel/internal/notification"
	"github.com/rickgao/notify-channel/internal/subscription"
	"github.com/rickgao/notify-channel/internal/transport"
)

// Session is a reconnecting, subscribed link to the notification server.
type Session struct {
	id         string
	cfg        Config
	dispatcher *dispatch.Dispatcher
	observers  *dispatch.Observers
	subs       *subscription.Manager
	metrics    Recorder
	logger     *slog.Logger

	lifecycle sync.Mutex // Serializes Start and Stop

	mu         sync.Mutex
	state      State
	conn       transport.Conn // Current link, nil unless connected
	generation uint64
	running    bool
	cancel     context.CancelFunc
	done       chan struct{}
}

// New creates a stopped session.
func New(cfg Config, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dispatcher == nil {
		cfg.Dispatcher = dispatch.NewDispatcher()
	}
	if cfg.Observers == nil {
		cfg.Observers = dispatch.NewObservers()
	}
	if cfg.Subscriptions == nil {
		cfg.Subscriptions = subscription.NewManager(logger)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopRecorder{}
	}

	id := uuid.NewString()
	return &Session{
		id:         id,
		cfg:        cfg,
		dispatcher: cfg.Dispatcher,
		observers:  cfg.Observers,
		subs:       cfg.Subscriptions,
		metrics:    cfg.Metrics,
		logger:     logger.With("session", id),
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Dispatcher returns the notification dispatcher the session feeds.
func (s *Session) Dispatcher() *dispatch.Dispatcher {
	return s.dispatcher
}

// Observers returns the connection observer registry.
func (s *Session) Observers() *dispatch.Observers {
	return s.observers
}

// Start loads the identity and launches the run loop. It returns once the
// loop is running; the first dial happens in the background. Calling Start
// on a running session does nothing. The session runs until Stop is called
// or ctx is cancelled.
func (s *Session) Start(ctx context.Context) error {
	if s.cfg.Dialer == nil {
		return ErrNoDialer
	}

	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.Running() {
		return nil
	}

	id := s.loadIdentity(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel() // Left over from a loop that gave up
	}
	s.running = true
	s.cancel = cancel
	s.done = done
	s.state = State{
		Status:     Connecting,
		UserID:     id.UserID,
		HasToken:   id.Token != "",
		Generation: s.generation,
	}
	s.mu.Unlock()

	s.logger.Info("session starting", "user_id", id.UserID, "token", id.Token != "")

	go s.run(runCtx, id, done)
	return nil
}

// Stop tears the link down and waits for the run loop to exit. Listeners
// stay registered. Stop on a stopped session does nothing. It must not be
// called synchronously from a listener, which runs on the run loop.
func (s *Session) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	cancel, done, conn := s.cancel, s.done, s.conn
	wasRunning := s.running
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if conn != nil {
		conn.Close()
	}
	<-done

	if wasRunning {
		s.logger.Info("session stopped")
	}
}

// Running reports whether the run loop is active.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status returns the current connection status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Status
}

// IsConnected reports whether a link is established and subscribed.
func (s *Session) IsConnected() bool {
	return s.Status() == Connected
}

// State returns a snapshot of the session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Unsubscribe sends an unsubscribe for the captured identity on the current link.
func (s *Session) Unsubscribe() error {
	s.mu.Lock()
	conn, userID := s.conn, s.state.UserID
	s.mu.Unlock()

	if conn == nil {
		return ErrNotActive
	}
	return s.subs.Unsubscribe(conn, userID)
}

func (s *Session) loadIdentity(ctx context.Context) identity.Identity {
	if s.cfg.Identity == nil {
		s.logger.Warn("no identity store configured, connecting anonymously")
		return identity.Identity{}
	}

	id, err := s.cfg.Identity.Load(ctx)
	switch {
	case errors.Is(err, identity.ErrNoIdentity):
		s.logger.Warn("no identity available, connecting anonymously")
		return identity.Identity{}
	case err != nil:
		s.logger.Warn("failed to load identity, connecting anonymously", "error", err)
		return identity.Identity{}
	}

	if id.Token != "" && !id.Valid() {
		s.logger.Warn("token expired", "user_id", id.UserID, "expiry", id.Expiry)
	}
	return id
}

// run is the session's only goroutine.
func (s *Session) run(ctx context.Context, id identity.Identity, done chan struct{}) {
	defer close(done)
	defer s.setStatus(Disconnected)

	bo := backoff.New(s.cfg.Backoff)

	for {
		if ctx.Err() != nil {
			return
		}

		if bo.Attempt() > 0 {
			s.metrics.ReconnectAttempt()
			s.logger.Info("attempting reconnection", "attempt", bo.Attempt())
		}

		s.setStatus(Connecting)
		conn, err := s.cfg.Dialer.Dial(ctx, id.Token)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.metrics.DialFailed()
			s.logger.Warn("dial failed", "error", err)
		} else {
			s.serve(ctx, conn, id, bo)
		}

		if !s.wait(ctx, bo) {
			return
		}
	}
}

// wait sleeps for the next backoff delay. It returns false if the session
// should stop.
func (s *Session) wait(ctx context.Context, bo *backoff.Backoff) bool {
	if ctx.Err() != nil {
		return false
	}

	delay, ok := bo.Next()
	if !ok {
		s.logger.Error("giving up reconnecting", "attempts", bo.Attempt())
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return false
	}

	s.setStatus(Disconnected)
	s.logger.Debug("reconnect scheduled", "delay", delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// serve subscribes on a fresh link and processes its frames until it ends.
func (s *Session) serve(ctx context.Context, conn transport.Conn, id identity.Identity, bo *backoff.Backoff) {
	defer conn.Close()

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.conn = conn
	s.mu.Unlock()

	// Stop may have run before conn was published.
	if ctx.Err() != nil {
		s.clearConn()
		return
	}

	if _, err := s.subs.Subscribe(conn, gen, id.UserID); err != nil {
		s.logger.Warn("subscribe failed, dropping connection", "generation", gen, "error", err)
		s.clearConn()
		return
	}
	s.metrics.Subscribed()

	s.mu.Lock()
	s.state.Status = Connected
	s.state.Generation = gen
	s.state.ConnectedAt = time.Now()
	s.mu.Unlock()

	bo.MarkConnected()
	s.metrics.Connected()
	s.metrics.SetConnected(true)
	s.logger.Info("connected", "generation", gen, "channel", subscription.ChannelName(id.UserID))
	s.notify(true)

	reason := s.readFrames(ctx, conn)

	s.clearConn()
	s.metrics.Disconnected()
	s.metrics.SetConnected(false)
	if ctx.Err() != nil {
		s.logger.Info("disconnected", "generation", gen, "reason", "stopped")
	} else {
		s.logger.Warn("connection lost", "generation", gen, "error", reason)
	}
	s.notify(false)
}

// readFrames dispatches inbound frames until the link ends and returns why.
func (s *Session) readFrames(ctx context.Context, conn transport.Conn) error {
	frames := conn.Frames()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-frames:
			if !ok {
				if err := conn.Err(); err != nil {
					return err
				}
				return transport.ErrClosed
			}
			s.handleFrame(f)
		}
	}
}

func (s *Session) handleFrame(f transport.Frame) {
	kind, err := notification.ParseEvent(f.Event)
	if err != nil {
		s.logger.Debug("ignoring event", "event", f.Event)
		return
	}

	receivedAt := f.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	env, err := notification.Decode(kind, f.Data, receivedAt)
	if err != nil {
		s.logger.Warn("dropping notification", "kind", kind, "error", err)
		return
	}

	s.dispatch(env)
}

// dispatch delivers one envelope. A panicking handler aborts the rest of
// this pass but not the session.
func (s *Session) dispatch(env notification.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.HandlerPanicked(env.Kind)
			s.logger.Error("notification handler panicked",
				"kind", env.Kind,
				"id", env.ID,
				"panic", fmt.Sprint(r),
			)
		}
	}()

	n := s.dispatcher.Dispatch(env)
	s.metrics.NotificationDispatched(env.Kind, n)
	s.logger.Debug("notification dispatched", "kind", env.Kind, "id", env.ID, "handlers", n)
}

func (s *Session) notify(connected bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("connection observer panicked", "connected", connected, "panic", fmt.Sprint(r))
		}
	}()
	s.observers.Notify(connected)
}

func (s *Session) clearConn() {
	s.mu.Lock()
	s.conn = nil
	s.state.Status = Disconnected
	s.state.ConnectedAt = time.Time{}
	s.mu.Unlock()
}

func (s *Session) setStatus(st Status) {
	s.mu.Lock()
	s.state.Status = st
	if st != Connected {
		s.state.ConnectedAt = time.Time{}
	}
	s.mu.Unlock()
}
