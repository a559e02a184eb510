// Package link keeps one transport connection alive.
//
// A Link owns a domain.Dialer and cycles through the states of
// domain.LinkState:
//
//	Disconnected ─Run─▶ Connecting ─ok─▶ Active
//	                        │              │ read/write error
//	                        │ dial error   ▼
//	                        └────────▶ Reconnecting ─Delay─▶ Connecting
//
// A connection that drops before it delivers a frame or lasts StableAfter is
// a failed attempt, the same as a failed dial. After MaxRetries consecutive
// failed attempts the link gives up, moves to Disconnected and Run returns
// domain.ErrConnection. Cancelling the context
// passed to Run ends the link from any state; queued frames get FlushGrace to
// drain before the transport is closed.
//
// Outbound frames go through a bounded queue that outlives individual
// connections, so frames sent during an outage are written once the link is
// Active again. Send never blocks.
package link
