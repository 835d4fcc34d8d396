// Package dedup suppresses repeat sightings of a plate within a
// cooldown window. Each camera owns exactly one Window; state is never
// shared across cameras, so the same plate can be new at an entry and
// an exit camera in the same instant.
package dedup

import (
	"sync"
	"time"
)

// Classification is the outcome of observing a plate.
type Classification int

const (
	New Classification = iota
	Repeat
)

func (c Classification) String() string {
	if c == New {
		return "new"
	}
	return "repeat"
}

// pruneFactor controls opportunistic garbage collection: entries older
// than pruneFactor cooldowns are swept once the map grows past
// pruneMinSize. Correctness never depends on the sweep; staleness is
// decided against the cooldown at read time.
const (
	pruneFactor  = 10
	pruneMinSize = 64
)

// Window tracks the last sighting time per canonical plate for one
// camera. The owning stream loop is the only writer; the mutex exists
// for administrative reads from other goroutines.
type Window struct {
	mu       sync.Mutex
	cooldown time.Duration
	lastSeen map[string]time.Time
}

func NewWindow(cooldown time.Duration) *Window {
	return &Window{
		cooldown: cooldown,
		lastSeen: make(map[string]time.Time),
	}
}

// Observe classifies a sighting of plate at the given instant. A plate
// absent from the table, or whose last sighting is at least one
// cooldown old, is New. Either way the sighting time is refreshed, so a
// continuously visible plate slides its window forward and never ages
// out mid-dwell.
func (w *Window) Observe(plate string, now time.Time) Classification {
	w.mu.Lock()
	defer w.mu.Unlock()

	class := New
	if last, ok := w.lastSeen[plate]; ok && now.Sub(last) < w.cooldown {
		class = Repeat
	}
	w.lastSeen[plate] = now

	if len(w.lastSeen) > pruneMinSize {
		w.prune(now)
	}
	return class
}

// Len reports how many plates are currently tracked.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.lastSeen)
}

// Reset clears all tracked sightings.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastSeen = make(map[string]time.Time)
}

func (w *Window) prune(now time.Time) {
	horizon := w.cooldown * pruneFactor
	for plate, last := range w.lastSeen {
		if now.Sub(last) > horizon {
			delete(w.lastSeen, plate)
		}
	}
}
