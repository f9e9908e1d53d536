package notification

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventPrefix prefixes every inbound notification event name.
const EventPrefix = "notification:"

// EventName returns the wire event name for a kind.
func EventName(kind Kind) string {
	return EventPrefix + string(kind)
}

// ParseEvent extracts the kind from a wire event name.
// The kind is everything after the first "notification:" prefix, so
// "notification:task:update" yields "task:update".
func ParseEvent(event string) (Kind, error) {
	if !strings.HasPrefix(event, EventPrefix) {
		return "", ErrNotNotification
	}
	kind := strings.TrimPrefix(event, EventPrefix)
	if kind == "" {
		return "", ErrEmptyKind
	}
	return Kind(kind), nil
}

// Decode parses a notification payload for the given kind.
//
// Missing ids are replaced by "ws-<uuid>" and a missing or unparseable
// createdAt falls back to receivedAt.
func Decode(kind Kind, payload []byte, receivedAt time.Time) (Envelope, error) {
	var w envelopeWire
	if err := json.Unmarshal(payload, &w); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	env := Envelope{
		ID:        w.ID,
		Kind:      kind,
		Title:     w.Title,
		Message:   w.Message,
		Data:      w.Data,
		CreatedAt: receivedAt,
		Raw:       append(json.RawMessage(nil), payload...),
	}
	if env.ID == "" {
		env.ID = "ws-" + uuid.NewString()
	}
	if w.CreatedAt != "" {
		if ts, err := time.Parse(time.RFC3339Nano, w.CreatedAt); err == nil {
			env.CreatedAt = ts
		}
	}

	return env, nil
}

// Encode renders an envelope in wire format. Used by the mock server and tests.
func Encode(env Envelope) ([]byte, error) {
	w := envelopeWire{
		ID:      env.ID,
		Type:    string(env.Kind),
		Title:   env.Title,
		Message: env.Message,
		Data:    env.Data,
	}
	if !env.CreatedAt.IsZero() {
		w.CreatedAt = env.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(w)
}
