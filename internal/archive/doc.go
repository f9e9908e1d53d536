// Package archive copies received notifications into PostgreSQL.
//
// Notifications are queued by a dispatch listener, batched by a writer
// goroutine and inserted with ON CONFLICT (id) DO NOTHING, so a notification
// redelivered after a reconnect is stored once. The archive is a log of what
// this client saw; it is never replayed into the channel.
package archive
