// Package notification defines the notification envelope delivered over the
// realtime channel and the event naming used on the wire.
//
// Conventions:
//   - Kinds are application-defined strings (e.g. "task:update")
//   - Inbound event names are "notification:" + kind
//   - Envelopes are passed by value; Raw keeps the payload as received
package notification
