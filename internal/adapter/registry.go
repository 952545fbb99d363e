package adapter

import (
	"sync"
	"time"
)

// Registry is a TTL-keyed set used to deduplicate gateway deliveries (an
// audit entry can arrive twice across a session resume). Entries the gateway
// never revisits are removed by the reaper's sweep.
type Registry struct {
	mu      sync.Mutex
	entries map[string]time.Time
	ttl     time.Duration
}

func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{entries: make(map[string]time.Time), ttl: ttl}
}

// Seen marks the id and reports whether it was already present and still
// fresh.
func (r *Registry) Seen(id string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	created, ok := r.entries[id]
	if ok && now.Sub(created) <= r.ttl {
		return true
	}
	r.entries[id] = now
	return false
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep drops entries older than the TTL and returns how many went.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := 0
	for id, created := range r.entries {
		if now.Sub(created) > r.ttl {
			delete(r.entries, id)
			dropped++
		}
	}
	return dropped
}
