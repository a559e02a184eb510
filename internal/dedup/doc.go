// Package dedup suppresses messages that were already seen.
//
// A Cache keeps keyed SipHash-128 fingerprints of recently admitted messages
// in arrival order and evicts them oldest-first once either the entry count or
// the entry age exceeds its bound. Entries are grouped by scope: a bridge uses
// one scope per side so that a message forwarded A→B is pre-recorded under B
// and dropped when the B server echoes it back, while direct mode uses the
// empty scope for everything it sends and receives.
//
// All methods are safe for concurrent use. The lock is never held across I/O.
package dedup
