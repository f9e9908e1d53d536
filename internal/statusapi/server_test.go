package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rickgao/notify-channel/internal/inbox"
	"github.com/rickgao/notify-channel/internal/notification"
)

type fakeChannel bool

func (c fakeChannel) Status() bool { return bool(c) }

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func newInbox() *inbox.Inbox {
	in := inbox.New(0, nil)
	in.Add(notification.Envelope{ID: "a", Kind: notification.KindSystem, Title: "A"})
	in.Add(notification.Envelope{ID: "b", Kind: notification.KindDispute, Title: "B"})
	return in
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		cfg        Config
		wantCode   int
		wantStatus string
	}{
		{"connected", Config{Channel: fakeChannel(true)}, http.StatusOK, StatusHealthy},
		{"disconnected", Config{Channel: fakeChannel(false)}, http.StatusOK, StatusDegraded},
		{"archive down", Config{Channel: fakeChannel(true), Archive: fakePinger{errors.New("refused")}}, http.StatusServiceUnavailable, StatusUnhealthy},
		{"archive up", Config{Channel: fakeChannel(true), Archive: fakePinger{}}, http.StatusOK, StatusHealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, NewHandler(tt.cfg, nil), http.MethodGet, "/health")
			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			var h Health
			if err := json.NewDecoder(rec.Body).Decode(&h); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if h.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", h.Status, tt.wantStatus)
			}
		})
	}
}

func TestListInbox(t *testing.T) {
	in := newInbox()
	in.MarkRead("a")
	h := NewHandler(Config{Inbox: in}, nil)

	tests := []struct {
		name    string
		path    string
		wantIDs []string
	}{
		{"all", "/inbox", []string{"b", "a"}},
		{"unread", "/inbox?isRead=false", []string{"b"}},
		{"by type", "/inbox?type=SYSTEM", []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tt.path)
			if rec.Code != http.StatusOK {
				t.Fatalf("code = %d", rec.Code)
			}
			var resp InboxResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Total != len(tt.wantIDs) || resp.UnreadCount != 1 {
				t.Errorf("total=%d unread=%d", resp.Total, resp.UnreadCount)
			}
			for i, id := range tt.wantIDs {
				if resp.Notifications[i].ID != id {
					t.Errorf("item %d = %s, want %s", i, resp.Notifications[i].ID, id)
				}
			}
		})
	}

	if rec := do(t, h, http.MethodGet, "/inbox?isRead=maybe"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad filter code = %d", rec.Code)
	}
}

func TestInboxMutations(t *testing.T) {
	in := newInbox()
	h := NewHandler(Config{Inbox: in}, nil)

	if rec := do(t, h, http.MethodPost, "/inbox/a/read"); rec.Code != http.StatusNoContent {
		t.Errorf("mark read code = %d", rec.Code)
	}
	if in.UnreadCount() != 1 {
		t.Errorf("unread = %d", in.UnreadCount())
	}

	if rec := do(t, h, http.MethodPost, "/inbox/missing/read"); rec.Code != http.StatusNotFound {
		t.Errorf("missing mark read code = %d", rec.Code)
	}

	rec := do(t, h, http.MethodGet, "/inbox/unread-count")
	var count map[string]int
	json.NewDecoder(rec.Body).Decode(&count)
	if count["unreadCount"] != 1 {
		t.Errorf("unread-count = %v", count)
	}

	rec = do(t, h, http.MethodPost, "/inbox/read-all")
	var updated map[string]int
	json.NewDecoder(rec.Body).Decode(&updated)
	if updated["updated"] != 1 || in.HasUnread() {
		t.Errorf("read-all = %v, unread=%d", updated, in.UnreadCount())
	}

	if rec := do(t, h, http.MethodDelete, "/inbox/b"); rec.Code != http.StatusNoContent {
		t.Errorf("delete code = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/inbox/b"); rec.Code != http.StatusNotFound {
		t.Errorf("second delete code = %d", rec.Code)
	}
	if in.Len() != 1 {
		t.Errorf("len = %d", in.Len())
	}
}

func TestMetricsMounted(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("notify_channel_connected 1\n"))
	})
	h := NewHandler(Config{Metrics: metrics, MetricsPath: "/prom"}, nil)

	if rec := do(t, h, http.MethodGet, "/prom"); rec.Code != http.StatusOK || rec.Body.String() != "notify_channel_connected 1\n" {
		t.Errorf("metrics code=%d body=%q", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodGet, "/inbox"); rec.Code != http.StatusNotFound {
		t.Errorf("inbox without inbox configured code = %d", rec.Code)
	}
}

func TestVersion(t *testing.T) {
	rec := do(t, NewHandler(Config{}, nil), http.MethodGet, "/version")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	var info map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info["version"] == "" {
		t.Errorf("info = %v", info)
	}
}
