// Package guard provides per-key mutual exclusion for settlement operations.
//
// A settlement that moves value through an external rail must not be
// re-enterable for the same asset: a rail callback that calls back into the
// ledger would otherwise observe partially-updated state. Acquire never
// blocks; a second acquisition of a held key reports failure so the caller
// can reject the re-entrant call outright.
package guard

import "sync"

// Keyed tracks held keys. The zero value is not usable; call New.
type Keyed struct {
	mu   sync.Mutex
	held map[string]bool
}

// New creates an empty guard registry.
func New() *Keyed {
	return &Keyed{held: make(map[string]bool)}
}

// Acquire marks key as held. It reports false, without blocking, if the key
// is already held.
func (g *Keyed) Acquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.held[key] {
		return false
	}
	g.held[key] = true
	return true
}

// Release frees key. Releasing a key that is not held is a no-op, so
// deferred releases on error paths are always safe.
func (g *Keyed) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.held, key)
}

// Held reports whether key is currently held.
func (g *Keyed) Held(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.held[key]
}
