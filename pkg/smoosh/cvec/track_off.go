//go:build smoosh_notrack

package cvec

import "unsafe"

// Tracking reports whether this build records live blocks.
const Tracking = false

func acquire(unsafe.Pointer) {}

func release(unsafe.Pointer) {}

// Snapshot returns zero counters; this build does not track blocks.
func Snapshot() Stats {
	return Stats{}
}
