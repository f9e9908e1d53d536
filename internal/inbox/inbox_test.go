package inbox

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rickgao/notify-channel/internal/dispatch"
	"github.com/rickgao/notify-channel/internal/notification"
)

func env(id string, kind notification.Kind) notification.Envelope {
	return notification.Envelope{
		ID:        id,
		Kind:      kind,
		Title:     "title " + id,
		Message:   "message " + id,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func ids(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestInbox_AddNewestFirst(t *testing.T) {
	in := New(0, nil)

	in.Add(env("a", notification.KindTaskUpdate))
	in.Add(env("b", notification.KindSettlement))
	in.Add(env("c", notification.KindSystem))

	got := ids(in.List(Filter{}))
	if fmt.Sprint(got) != "[c b a]" {
		t.Errorf("order = %v, want [c b a]", got)
	}
	if in.UnreadCount() != 3 || !in.HasUnread() {
		t.Errorf("unread = %d", in.UnreadCount())
	}

	it, err := in.Get("b")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if it.Type != "SETTLEMENT" || it.Kind != notification.KindSettlement || it.IsRead || it.ReadAt != nil {
		t.Errorf("item = %+v", it)
	}
}

func TestInbox_DuplicateIgnored(t *testing.T) {
	in := New(0, nil)
	if _, ok := in.Add(env("a", notification.KindSystem)); !ok {
		t.Fatal("first add rejected")
	}
	if _, ok := in.Add(env("a", notification.KindSystem)); ok {
		t.Error("duplicate accepted")
	}
	if in.Len() != 1 || in.UnreadCount() != 1 {
		t.Errorf("len=%d unread=%d", in.Len(), in.UnreadCount())
	}
}

func TestInbox_Bounded(t *testing.T) {
	in := New(2, nil)
	in.Add(env("a", notification.KindSystem))
	in.Add(env("b", notification.KindSystem))
	in.Add(env("c", notification.KindSystem))

	if got := ids(in.List(Filter{})); fmt.Sprint(got) != "[c b]" {
		t.Errorf("items = %v, want [c b]", got)
	}
	if in.UnreadCount() != 2 {
		t.Errorf("unread = %d, want 2", in.UnreadCount())
	}
}

func TestInbox_MarkRead(t *testing.T) {
	in := New(0, nil)
	fixed := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	in.now = func() time.Time { return fixed }

	in.Add(env("a", notification.KindSystem))
	in.Add(env("b", notification.KindSystem))

	if err := in.MarkRead("a"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if err := in.MarkRead("a"); err != nil {
		t.Fatalf("second MarkRead: %v", err)
	}
	if in.UnreadCount() != 1 {
		t.Errorf("unread = %d, want 1", in.UnreadCount())
	}

	it, _ := in.Get("a")
	if !it.IsRead || it.ReadAt == nil || !it.ReadAt.Equal(fixed) {
		t.Errorf("item = %+v", it)
	}

	if err := in.MarkRead("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestInbox_MarkAllRead(t *testing.T) {
	in := New(0, nil)
	in.Add(env("a", notification.KindSystem))
	in.Add(env("b", notification.KindSystem))
	in.MarkRead("a")

	if n := in.MarkAllRead(); n != 1 {
		t.Errorf("changed = %d, want 1", n)
	}
	if in.HasUnread() {
		t.Error("still has unread")
	}
	for _, it := range in.List(Filter{}) {
		if !it.IsRead || it.ReadAt == nil {
			t.Errorf("item %s not read", it.ID)
		}
	}
}

func TestInbox_Delete(t *testing.T) {
	in := New(0, nil)
	in.Add(env("a", notification.KindSystem))
	in.Add(env("b", notification.KindSystem))
	in.MarkRead("b")

	tests := []struct {
		name       string
		id         string
		wantErr    error
		wantUnread int
		wantLen    int
	}{
		{"read item", "b", nil, 1, 1},
		{"unread item", "a", nil, 0, 0},
		{"missing", "a", ErrNotFound, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := in.Delete(tt.id)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if in.UnreadCount() != tt.wantUnread || in.Len() != tt.wantLen {
				t.Errorf("unread=%d len=%d, want %d %d", in.UnreadCount(), in.Len(), tt.wantUnread, tt.wantLen)
			}
		})
	}
}

func TestInbox_ListFilter(t *testing.T) {
	in := New(0, nil)
	in.Add(env("a", notification.KindSystem))
	in.Add(env("b", notification.KindDispute))
	in.Add(env("c", notification.KindSystem))
	in.MarkRead("c")

	read, unread := true, false
	tests := []struct {
		name   string
		filter Filter
		want   string
	}{
		{"all", Filter{}, "[c b a]"},
		{"type", Filter{Type: "SYSTEM"}, "[c a]"},
		{"read", Filter{IsRead: &read}, "[c]"},
		{"unread", Filter{IsRead: &unread}, "[b a]"},
		{"type and unread", Filter{Type: "SYSTEM", IsRead: &unread}, "[a]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fmt.Sprint(ids(in.List(tt.filter))); got != tt.want {
				t.Errorf("List = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestInbox_Clear(t *testing.T) {
	in := New(0, nil)
	in.Add(env("a", notification.KindSystem))
	in.Clear()
	if in.Len() != 0 || in.UnreadCount() != 0 {
		t.Errorf("len=%d unread=%d", in.Len(), in.UnreadCount())
	}
}

// source is a Source backed by real registries.
type source struct {
	d *dispatch.Dispatcher
	o *dispatch.Observers
}

func (s source) OnNotification(kind notification.Kind, fn func(notification.Envelope)) dispatch.Disposer {
	return s.d.On(kind, fn)
}

func (s source) OnConnectionChange(fn func(bool)) dispatch.Disposer {
	return s.o.Add(fn)
}

func TestInbox_Attach(t *testing.T) {
	src := source{d: dispatch.NewDispatcher(), o: dispatch.NewObservers()}
	in := New(0, nil)
	detach := in.Attach(src)

	for _, kind := range notification.KnownKinds() {
		src.d.Dispatch(env("id-"+string(kind), kind))
	}
	src.d.Dispatch(env("other", notification.Kind("chat")))
	src.o.Notify(true)

	if in.Len() != len(notification.KnownKinds()) {
		t.Errorf("len = %d, want %d", in.Len(), len(notification.KnownKinds()))
	}
	if !in.Connected() {
		t.Error("connected not tracked")
	}

	detach()
	src.d.Dispatch(env("late", notification.KindSystem))
	src.o.Notify(false)
	if _, err := in.Get("late"); !errors.Is(err, ErrNotFound) {
		t.Error("delivered after detach")
	}
	if !in.Connected() {
		t.Error("status changed after detach")
	}
}
