// Package inbox keeps the user's received notifications in memory, newest
// first, with read state and an unread counter.
package inbox

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/notify-channel/internal/dispatch"
	"github.com/rickgao/notify-channel/internal/notification"
)

// ErrNotFound is returned for unknown notification ids.
var ErrNotFound = errors.New("notification not found")

// DefaultMaxItems bounds the inbox when no limit is configured.
const DefaultMaxItems = 500

// Item is one notification in the inbox.
type Item struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Kind      notification.Kind `json:"kind"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Data      map[string]any    `json:"data"`
	IsRead    bool              `json:"isRead"`
	ReadAt    *time.Time        `json:"readAt"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Filter selects items in List. Zero value matches everything.
type Filter struct {
	Type   string // Inbox type, e.g. "SETTLEMENT"
	IsRead *bool
}

func (f Filter) match(it Item) bool {
	if f.Type != "" && it.Type != f.Type {
		return false
	}
	if f.IsRead != nil && it.IsRead != *f.IsRead {
		return false
	}
	return true
}

// Source is where the inbox receives notifications from.
type Source interface {
	OnNotification(kind notification.Kind, handler func(notification.Envelope)) dispatch.Disposer
	OnConnectionChange(handler func(connected bool)) dispatch.Disposer
}

// Inbox is a bounded, concurrency-safe notification list.
type Inbox struct {
	maxItems int
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.RWMutex
	items     []Item // Newest first
	unread    int
	connected bool
}

// New creates an inbox holding at most maxItems (0 = DefaultMaxItems).
func New(maxItems int, logger *slog.Logger) *Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &Inbox{
		maxItems: maxItems,
		logger:   logger,
		now:      time.Now,
	}
}

// Attach registers the inbox on every known notification kind and on
// connection changes. The returned func detaches it.
func (in *Inbox) Attach(src Source) func() {
	disposers := make([]dispatch.Disposer, 0, len(notification.KnownKinds())+1)
	for _, kind := range notification.KnownKinds() {
		disposers = append(disposers, src.OnNotification(kind, func(env notification.Envelope) {
			in.Add(env)
		}))
	}
	disposers = append(disposers, src.OnConnectionChange(in.SetConnected))

	return func() {
		for _, d := range disposers {
			d()
		}
	}
}

// Add prepends an unread item built from env. It reports false if an item
// with the same id is already present.
func (in *Inbox) Add(env notification.Envelope) (Item, bool) {
	it := Item{
		ID:        env.ID,
		Type:      env.Kind.Type(),
		Kind:      env.Kind,
		Title:     env.Title,
		Message:   env.Message,
		Data:      env.Data,
		CreatedAt: env.CreatedAt,
	}
	return it, in.AddItem(it)
}

// AddItem prepends it, counting it as unread unless already read.
func (in *Inbox) AddItem(it Item) bool {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.indexLocked(it.ID) >= 0 {
		in.logger.Debug("duplicate notification ignored", "id", it.ID)
		return false
	}

	in.items = append(in.items, Item{})
	copy(in.items[1:], in.items)
	in.items[0] = it
	if !it.IsRead {
		in.unread++
	}

	for len(in.items) > in.maxItems {
		last := in.items[len(in.items)-1]
		if !last.IsRead {
			in.unread--
		}
		in.items = in.items[:len(in.items)-1]
	}
	return true
}

// List returns matching items, newest first.
func (in *Inbox) List(f Filter) []Item {
	in.mu.RLock()
	defer in.mu.RUnlock()

	out := make([]Item, 0, len(in.items))
	for _, it := range in.items {
		if f.match(it) {
			out = append(out, it)
		}
	}
	return out
}

// Get returns one item by id.
func (in *Inbox) Get(id string) (Item, error) {
	in.mu.RLock()
	defer in.mu.RUnlock()

	i := in.indexLocked(id)
	if i < 0 {
		return Item{}, ErrNotFound
	}
	return in.items[i], nil
}

// Len returns the number of items.
func (in *Inbox) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.items)
}

// UnreadCount returns the number of unread items.
func (in *Inbox) UnreadCount() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.unread
}

// HasUnread reports whether any item is unread.
func (in *Inbox) HasUnread() bool {
	return in.UnreadCount() > 0
}

// MarkRead marks one item read. Marking an already read item is a no-op.
func (in *Inbox) MarkRead(id string) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	i := in.indexLocked(id)
	if i < 0 {
		return ErrNotFound
	}
	if in.items[i].IsRead {
		return nil
	}

	now := in.now()
	in.items[i].IsRead = true
	in.items[i].ReadAt = &now
	in.unread--
	return nil
}

// MarkAllRead marks every item read and returns how many changed.
func (in *Inbox) MarkAllRead() int {
	in.mu.Lock()
	defer in.mu.Unlock()

	now := in.now()
	n := 0
	for i := range in.items {
		if in.items[i].IsRead {
			continue
		}
		in.items[i].IsRead = true
		in.items[i].ReadAt = &now
		n++
	}
	in.unread = 0
	return n
}

// Delete removes one item.
func (in *Inbox) Delete(id string) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	i := in.indexLocked(id)
	if i < 0 {
		return ErrNotFound
	}
	if !in.items[i].IsRead {
		in.unread--
	}
	in.items = append(in.items[:i], in.items[i+1:]...)
	return nil
}

// Clear removes every item.
func (in *Inbox) Clear() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.items = nil
	in.unread = 0
}

// SetConnected records the channel's connection status.
func (in *Inbox) SetConnected(connected bool) {
	in.mu.Lock()
	in.connected = connected
	in.mu.Unlock()
	in.logger.Debug("connection status changed", "connected", connected)
}

// Connected returns the last recorded connection status.
func (in *Inbox) Connected() bool {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.connected
}

func (in *Inbox) indexLocked(id string) int {
	for i := range in.items {
		if in.items[i].ID == id {
			return i
		}
	}
	return -1
}
