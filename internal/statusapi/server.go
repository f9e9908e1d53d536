// Package statusapi serves the local HTTP API of notifywatch: health,
// the inbox, and Prometheus metrics.
package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rickgao/notify-channel/internal/inbox"
	"github.com/rickgao/notify-channel/internal/version"
)

// Health status values.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Channel reports realtime connection status.
type Channel interface {
	Status() bool
}

// Pinger checks a dependency, e.g. the archive database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Inbox is the inbox surface exposed over HTTP.
type Inbox interface {
	List(f inbox.Filter) []inbox.Item
	UnreadCount() int
	MarkRead(id string) error
	MarkAllRead() int
	Delete(id string) error
}

// Config wires the API to its sources. Nil fields are left out.
type Config struct {
	Channel     Channel
	Inbox       Inbox
	Archive     Pinger
	Metrics     http.Handler
	MetricsPath string
}

// Health is the /health response body.
type Health struct {
	Status     string         `json:"status"`
	Components map[string]any `json:"components"`
}

// InboxResponse is the GET /inbox response body.
type InboxResponse struct {
	Notifications []inbox.Item `json:"notifications"`
	Total         int          `json:"total"`
	UnreadCount   int          `json:"unreadCount"`
}

type server struct {
	cfg    Config
	logger *slog.Logger
}

// NewHandler builds the router.
func NewHandler(cfg Config, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &server{cfg: cfg, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)
	r.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, version.Get())
	})

	if cfg.Inbox != nil {
		r.Route("/inbox", func(r chi.Router) {
			r.Get("/", s.listInbox)
			r.Get("/unread-count", s.unreadCount)
			r.Post("/read-all", s.markAllRead)
			r.Post("/{id}/read", s.markRead)
			r.Delete("/{id}", s.deleteItem)
		})
	}

	if cfg.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, cfg.Metrics)
	}

	return r
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := Health{
		Status:     StatusHealthy,
		Components: make(map[string]any),
	}

	if s.cfg.Channel != nil {
		connected := s.cfg.Channel.Status()
		health.Components["channel"] = map[string]any{"connected": connected}
		if !connected {
			health.Status = StatusDegraded
		}
	}

	if s.cfg.Archive != nil {
		if err := s.cfg.Archive.Ping(ctx); err != nil {
			health.Status = StatusUnhealthy
			health.Components["archive"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["archive"] = "connected"
		}
	}

	if s.cfg.Inbox != nil {
		health.Components["inbox"] = map[string]int{"unread": s.cfg.Inbox.UnreadCount()}
	}

	code := http.StatusOK
	if health.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, health)
}

func (s *server) listInbox(w http.ResponseWriter, r *http.Request) {
	var f inbox.Filter
	f.Type = r.URL.Query().Get("type")
	if raw := r.URL.Query().Get("isRead"); raw != "" {
		isRead, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "isRead must be true or false")
			return
		}
		f.IsRead = &isRead
	}

	items := s.cfg.Inbox.List(f)
	s.writeJSON(w, http.StatusOK, InboxResponse{
		Notifications: items,
		Total:         len(items),
		UnreadCount:   s.cfg.Inbox.UnreadCount(),
	})
}

func (s *server) unreadCount(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]int{"unreadCount": s.cfg.Inbox.UnreadCount()})
}

func (s *server) markRead(w http.ResponseWriter, r *http.Request) {
	s.itemOp(w, s.cfg.Inbox.MarkRead(chi.URLParam(r, "id")))
}

func (s *server) deleteItem(w http.ResponseWriter, r *http.Request) {
	s.itemOp(w, s.cfg.Inbox.Delete(chi.URLParam(r, "id")))
}

func (s *server) markAllRead(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]int{"updated": s.cfg.Inbox.MarkAllRead()})
}

func (s *server) itemOp(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, inbox.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, map[string]string{"error": msg})
}

func (s *server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", "error", err)
	}
}
