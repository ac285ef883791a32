package bus

import "time"

// Event is a notification published by the engine. Kinds are dotted and
// namespaced so consumers can subscribe to a slice of the stream:
//
//	store.*    an action was committed to the store (suffix = action kind)
//	session.*  endpoint connection lifecycle (status changes, token refresh)
//	engine.*   ingestion diagnostics (dropped events, fetch failures)
//	notify.*   user-facing notifications queued
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
