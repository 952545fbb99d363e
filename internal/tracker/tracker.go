package tracker

import (
	"sync"
	"time"
)

// record is one keyed sliding window. Its own mutex serializes mutation per
// key so hot keys never block each other.
type record struct {
	mu   sync.Mutex
	hits []time.Time
	last time.Time
}

// Set is a map of sliding-window counters keyed by an opaque string. The
// window span is supplied per call because it comes from per-guild config.
type Set struct {
	mu        sync.Mutex
	records   map[string]*record
	retention time.Duration
}

// NewSet creates a set whose idle records are dropped by Sweep after
// retention.
func NewSet(retention time.Duration) *Set {
	return &Set{records: make(map[string]*record), retention: retention}
}

// Record appends now to the key's window, prunes entries older than
// now-span, and returns the post-prune count.
func (s *Set) Record(key string, now time.Time, span time.Duration) int {
	rec := s.get(key)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.prune(now, span)
	rec.hits = append(rec.hits, now)
	rec.last = now
	return len(rec.hits)
}

// Count prunes and counts without recording a hit. A key with no live
// entries reports 0.
func (s *Set) Count(key string, now time.Time, span time.Duration) int {
	s.mu.Lock()
	rec := s.records[key]
	s.mu.Unlock()
	if rec == nil {
		return 0
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.prune(now, span)
	return len(rec.hits)
}

// Contains reports whether a record exists for the key, pruned or not.
func (s *Set) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[key]
	return ok
}

func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Sweep deletes records whose most recent hit is older than the retention
// horizon and returns how many were dropped. Guilds that burst and go quiet
// stop costing memory.
func (s *Set) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for key, rec := range s.records {
		rec.mu.Lock()
		idle := now.Sub(rec.last) > s.retention
		rec.mu.Unlock()
		if idle {
			delete(s.records, key)
			dropped++
		}
	}
	return dropped
}

func (s *Set) get(key string) *record {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.records[key]
	if rec == nil {
		rec = &record{}
		s.records[key] = rec
	}
	return rec
}

func (r *record) prune(now time.Time, span time.Duration) {
	cutoff := now.Add(-span)
	idx := 0
	for _, hit := range r.hits {
		if hit.After(cutoff) {
			break
		}
		idx++
	}
	r.hits = r.hits[idx:]
}
