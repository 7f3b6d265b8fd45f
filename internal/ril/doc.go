// Package ril owns the radio daemon client core.
//
// Ownership boundary:
// - request envelopes, serial allocation and the pending-request table
// - the outbound dispatcher and inbound reader loops
// - connection lifecycle with indefinite reconnect
// - keep-alive token accounting for outstanding requests
// - decoder and event-subscriber registries
//
// A Client runs exactly two long-lived goroutines: the dispatcher, which owns
// every socket write, and the connection manager, which dials and then reads
// frames for the lifetime of each connection. Callers only enqueue.
//
// Requests have no individual timeout. A request written to a connection that
// stays open while the daemon never answers remains pending until the
// connection drops; only the keep-alive token is force-released after
// Config.KeepAliveTimeout.
package ril
