// Package memzero wipes sensitive byte slices.
package memzero

import "runtime"

// Zero overwrites b with zeros. Best effort: the noinline and KeepAlive keep
// the compiler from eliding the writes on a buffer that is about to die.
//
//go:noinline
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	clear(b)
	runtime.KeepAlive(b)
}
