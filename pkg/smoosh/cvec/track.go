//go:build !smoosh_notrack

package cvec

import (
	"sync"
	"unsafe"
)

// Tracking reports whether this build records live blocks.
const Tracking = true

// Keys are pointers so a tracked block lives on the heap and a leaked block
// stays reachable; its address can neither move nor be reused.
var tracker = struct {
	mu       sync.Mutex
	live     map[unsafe.Pointer]struct{}
	acquired uint64
	released uint64
}{live: make(map[unsafe.Pointer]struct{})}

func acquire(key unsafe.Pointer) {
	tracker.mu.Lock()
	if _, dup := tracker.live[key]; dup {
		tracker.mu.Unlock()
		violation("from owned", "block is already owned by a live descriptor")
	}
	tracker.live[key] = struct{}{}
	tracker.acquired++
	tracker.mu.Unlock()
}

func release(key unsafe.Pointer) {
	tracker.mu.Lock()
	if _, ok := tracker.live[key]; !ok {
		tracker.mu.Unlock()
		violation("into owned", "block is not live (released twice or not produced by FromOwned)")
	}
	delete(tracker.live, key)
	tracker.released++
	tracker.mu.Unlock()
}

// Snapshot returns the current allocation counters.
func Snapshot() Stats {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	return Stats{
		Live:     len(tracker.live),
		Acquired: tracker.acquired,
		Released: tracker.released,
	}
}
