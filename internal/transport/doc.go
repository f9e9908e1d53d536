// Package transport implements the bidirectional link used by the realtime
// channel: JSON event frames over a WebSocket.
//
// Wire format (text messages):
//
//	{"event": "subscribe", "data": "user:42"}
//	{"event": "notification:task:update", "data": {"id": "...", "title": "..."}}
//
// A Conn is single-use. Its Frames channel is closed when the link ends,
// whatever the cause; Err then reports why. Reconnection is the caller's
// concern.
package transport
