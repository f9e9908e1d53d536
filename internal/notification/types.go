package notification

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrNotNotification = errors.New("not a notification event")
	ErrEmptyKind       = errors.New("empty notification kind")
	ErrInvalidPayload  = errors.New("invalid notification payload")
)

// Kind is the application-defined category of a notification.
type Kind string

// Kinds pushed by the task server.
const (
	KindTaskUpdate Kind = "task:update"
	KindSettlement Kind = "settlement"
	KindDispute    Kind = "dispute"
	KindSystem     Kind = "system"
)

// KnownKinds lists the kinds the server is known to push.
func KnownKinds() []Kind {
	return []Kind{KindTaskUpdate, KindSettlement, KindDispute, KindSystem}
}

// Type returns the upper-case inbox type for known kinds ("TASK_UPDATE",
// "SETTLEMENT", ...). Unknown kinds map to "SYSTEM".
func (k Kind) Type() string {
	switch k {
	case KindTaskUpdate:
		return "TASK_UPDATE"
	case KindSettlement:
		return "SETTLEMENT"
	case KindDispute:
		return "DISPUTE"
	default:
		return "SYSTEM"
	}
}

// Envelope is a single notification as received from the server.
type Envelope struct {
	ID        string
	Kind      Kind
	Title     string
	Message   string
	CreatedAt time.Time
	Data      map[string]any  // Optional structured payload ("data" field)
	Raw       json.RawMessage // Payload bytes exactly as received
}

// envelopeWire is the wire format of a notification payload.
type envelopeWire struct {
	ID        string         `json:"id"`
	Type      string         `json:"type,omitempty"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt string         `json:"createdAt"`
}
